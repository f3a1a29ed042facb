package ws

import (
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/datatypes"

	"go_provision/internal/db"
	"go_provision/internal/model"
)

const stepTopic = "steps"

// Publisher adapts the package-level publish function to the orchestrator's
// event sink.
type Publisher struct{}

// PublishStepEvent implements the orchestrator's EventPublisher. Publish
// failures are logged and swallowed; pushing events never fails a step.
func (Publisher) PublishStepEvent(eventType string, payload interface{}) {
	if err := PublishStepEvent(eventType, payload); err != nil {
		log.Printf("[WebSocket] Failed to publish step event: %v", err)
	}
}

// PublishStepEvent persists a step status change and broadcasts it to all
// connected clients. eventType: "started", "success", "failed".
func PublishStepEvent(eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := model.StepEvent{
		Topic:     stepTopic,
		EventType: eventType,
		Payload:   datatypes.JSON(payloadJSON),
	}

	if err := db.GetDB().Create(&event).Error; err != nil {
		return fmt.Errorf("failed to write event to database: %w", err)
	}

	// Broadcast failure cannot happen here; BroadcastToAll is a no-op when no
	// server is running.
	BroadcastToAll("steps:update", map[string]interface{}{
		"eventId": event.ID,
		"type":    eventType,
		"data":    payload,
	})

	return nil
}

// GetIncrementalEvents retrieves step events with id > lastEventId, oldest
// first, limited to maxCount. Reconnecting clients use this to catch up.
func GetIncrementalEvents(lastEventId int64, maxCount int) ([]model.StepEvent, error) {
	var events []model.StepEvent

	err := db.GetDB().
		Where("topic = ? AND id > ?", stepTopic, lastEventId).
		Order("id ASC").
		Limit(maxCount).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query incremental events: %w", err)
	}

	return events, nil
}

// GetLatestEventId retrieves the latest step event id, 0 when none exist
func GetLatestEventId() (int64, error) {
	var event model.StepEvent

	err := db.GetDB().
		Where("topic = ?", stepTopic).
		Order("id DESC").
		Limit(1).
		First(&event).Error
	if err != nil {
		if err.Error() == "record not found" {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query latest event: %w", err)
	}

	return event.ID, nil
}
