// Package steplog records the latest outcome of each step per application.
// The log is a latest-status cache, not an audit trail: re-running a step
// overwrites the previous entry for the same (application, step) pair.
package steplog

import (
	"encoding/json"
	"fmt"

	"go_provision/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Recorder is the write side of the step log. The orchestrator is its only
// caller.
type Recorder interface {
	Record(applicationID int, step string, status model.StepStatus, message interface{}) error
}

// Service persists step log entries
type Service struct {
	db *gorm.DB
}

// NewService creates a step log service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record upserts the entry for (applicationID, step). The message payload is
// JSON-encoded; the unique index guarantees at most one row per pair.
func (s *Service) Record(applicationID int, step string, status model.StepStatus, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to encode step message: %w", err)
	}

	entry := model.ApplicationStep{
		ApplicationID: applicationID,
		Step:          step,
		Status:        status,
		Message:       datatypes.JSON(payload),
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "step"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "message", "updated_at"}),
	}).Create(&entry).Error
}

// List returns all step entries for an application in creation order
func (s *Service) List(applicationID int) ([]model.ApplicationStep, error) {
	var steps []model.ApplicationStep
	err := s.db.Where("application_id = ?", applicationID).
		Order("created_at ASC, id ASC").
		Find(&steps).Error
	return steps, err
}
