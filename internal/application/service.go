// Package application owns all writes to the applications table and the
// per-application serialization of step execution.
package application

import (
	"errors"
	"fmt"

	"go_provision/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service resolves and upserts provisioning targets
type Service struct {
	db *gorm.DB
}

// NewService creates an application service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Find resolves an application by its (host, username, applicationName)
// triple. Returns gorm.ErrRecordNotFound when the triple has never been
// verified.
func (s *Service) Find(host, username, applicationName string) (*model.Application, error) {
	var app model.Application
	err := s.db.Where("host = ? AND username = ? AND application_name = ?",
		host, username, applicationName).First(&app).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByID resolves an application by surrogate id
func (s *Service) FindByID(id int) (*model.Application, error) {
	var app model.Application
	if err := s.db.First(&app, id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// Upsert saves an application keyed by its triple. An existing row is merged
// field-by-field (last-write-wins on non-empty incoming values); the table
// never holds two rows for the same triple.
func (s *Service) Upsert(app *model.Application) (*model.Application, error) {
	existing, err := s.Find(app.Host, app.Username, app.ApplicationName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if app.Port == 0 {
			app.Port = 22
		}
		if app.Status == "" {
			app.Status = model.ApplicationStatusPending
		}
		if err := s.db.Create(app).Error; err != nil {
			return nil, fmt.Errorf("failed to create application: %w", err)
		}
		return app, nil
	}
	if err != nil {
		return nil, err
	}

	updates := mergeUpdates(app)
	if len(updates) > 0 {
		if err := s.db.Model(existing).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update application: %w", err)
		}
	}
	return existing, nil
}

// UpdateFields applies a partial update to an application by id
func (s *Service) UpdateFields(id int, updates map[string]interface{}) error {
	return s.db.Model(&model.Application{}).Where("id = ?", id).Updates(updates).Error
}

// List returns all applications, newest first, without credential columns
func (s *Service) List() ([]model.Application, error) {
	var apps []model.Application
	err := s.db.
		Omit("ssh_private_key", "github_token").
		Order("id DESC").
		Find(&apps).Error
	return apps, err
}

// SaveDatabaseConfig upserts the record of one provisioned database, keyed
// by (application_id, db_name).
func (s *Service) SaveDatabaseConfig(cfg *model.DatabaseConfig) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "application_id"}, {Name: "db_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"db_type", "db_username", "db_port", "status", "updated_at"}),
	}).Create(cfg).Error
}

// mergeUpdates builds the column map for an upsert merge. Only non-zero
// incoming values overwrite stored ones, so a step that knows nothing about
// (say) the GitHub token cannot blank it.
func mergeUpdates(app *model.Application) map[string]interface{} {
	updates := map[string]interface{}{}
	if app.Port != 0 {
		updates["port"] = app.Port
	}
	if app.SSHPrivateKey != "" {
		updates["ssh_private_key"] = app.SSHPrivateKey
	}
	if app.GithubToken != "" {
		updates["github_token"] = app.GithubToken
	}
	if app.GithubUsername != "" {
		updates["github_username"] = app.GithubUsername
	}
	if app.SelectedRepo != "" {
		updates["selected_repo"] = app.SelectedRepo
	}
	if app.Domain != "" {
		updates["domain"] = app.Domain
	}
	if app.Pathname != "" {
		updates["pathname"] = app.Pathname
	}
	if app.PrivateKeySecretName != "" {
		updates["private_key_secret_name"] = app.PrivateKeySecretName
	}
	if app.Status != "" {
		updates["status"] = app.Status
	}
	if app.CompletedAt != nil {
		updates["completed_at"] = app.CompletedAt
	}
	return updates
}
