package model

import "time"

// ApplicationStatus represents the provisioning lifecycle of an application
type ApplicationStatus string

const (
	ApplicationStatusPending    ApplicationStatus = "pending"
	ApplicationStatusInProgress ApplicationStatus = "in-progress"
	ApplicationStatusCompleted  ApplicationStatus = "completed"
	ApplicationStatusFailed     ApplicationStatus = "failed"
)

// Application represents one provisioning target: a (host, username,
// applicationName) triple plus its stored credentials and derived state.
// The triple is unique; re-saving the same triple merges fields into the
// existing row instead of creating a duplicate.
type Application struct {
	BaseModel
	Host            string `gorm:"type:varchar(255);uniqueIndex:uk_app_target,priority:1;not null" json:"host"`
	Username        string `gorm:"type:varchar(128);uniqueIndex:uk_app_target,priority:2;not null" json:"username"`
	ApplicationName string `gorm:"type:varchar(128);uniqueIndex:uk_app_target,priority:3;not null" json:"applicationName"`
	Port            int    `gorm:"default:22" json:"port"`

	// Credentials are stored verbatim and never returned in list responses.
	SSHPrivateKey  string `gorm:"type:text" json:"-"`
	GithubToken    string `gorm:"type:varchar(255)" json:"-"`
	GithubUsername string `gorm:"type:varchar(128)" json:"githubUsername"`

	// Derived state discovered/changed by individual steps.
	SelectedRepo         string `gorm:"type:varchar(255)" json:"selectedRepo"` // "owner/repo"
	Domain               string `gorm:"type:varchar(255)" json:"domain"`
	Pathname             string `gorm:"type:varchar(512)" json:"pathname"`
	PrivateKeySecretName string `gorm:"type:varchar(255)" json:"privateKeySecretName"`

	Status      ApplicationStatus `gorm:"type:enum('pending','in-progress','completed','failed');default:'pending'" json:"status"`
	CompletedAt *time.Time        `json:"completedAt"`

	Steps     []ApplicationStep `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	Databases []DatabaseConfig  `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"databases,omitempty"`
}

// TableName specifies the table name for Application model
func (Application) TableName() string {
	return "applications"
}
