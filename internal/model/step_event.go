package model

import (
	"time"

	"gorm.io/datatypes"
)

// StepEvent represents a step status change pushed to connected UI clients.
// Events are persisted so a reconnecting client can catch up incrementally
// by last seen event id.
type StepEvent struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Topic     string         `gorm:"column:topic;type:varchar(64);not null;index:idx_topic_id" json:"topic"`
	EventType string         `gorm:"column:event_type;type:enum('started','success','failed');not null" json:"event_type"`
	Payload   datatypes.JSON `gorm:"column:payload;type:json;not null" json:"payload"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for StepEvent
func (StepEvent) TableName() string {
	return "step_events"
}
