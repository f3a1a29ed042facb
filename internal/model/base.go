package model

import (
	"time"
)

// BaseModel carries the key and timestamps shared by every table. JSON tags
// are camelCase to match the rest of the API surface.
type BaseModel struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}
