package model

import "gorm.io/datatypes"

// StepStatus represents the outcome of one step execution
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
)

// Step names. Each name identifies one idempotent provisioning step; the
// (application_id, step) pair is unique, so re-running a step overwrites the
// previous log entry rather than accumulating history.
const (
	StepConnectionVerify     = "connection-verify"
	StepDeployKey            = "deploy-key"
	StepDatabaseCreate       = "database-create"
	StepFolderSetup          = "folder-setup"
	StepEnvSetup             = "env-setup"
	StepEnvUpdate            = "env-update"
	StepSSHKeySetup          = "ssh-key-setup"
	StepServerStackSetup     = "server-stack-setup"
	StepHTTPSNginxSetup      = "https-nginx-setup"
	StepNodeNVMSetup         = "node-nvm-setup"
	StepDeployWorkflowUpdate = "deploy-workflow-update"
)

// ApplicationStep holds the latest recorded outcome of one step for one
// application. Message is a JSON diagnostic payload (repo names, durations,
// command output excerpts, error details).
type ApplicationStep struct {
	BaseModel
	ApplicationID int            `gorm:"uniqueIndex:uk_app_step,priority:1;not null" json:"applicationId"`
	Step          string         `gorm:"type:varchar(64);uniqueIndex:uk_app_step,priority:2;not null" json:"step"`
	Status        StepStatus     `gorm:"type:enum('success','failed');not null" json:"status"`
	Message       datatypes.JSON `gorm:"type:json" json:"message"`
}

// TableName specifies the table name for ApplicationStep model
func (ApplicationStep) TableName() string {
	return "application_steps"
}
