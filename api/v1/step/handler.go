// Package step exposes one endpoint per provisioning step. Every endpoint
// resolves the target application by its (host, username, applicationName)
// triple, validates required fields before anything touches SSH or the
// GitHub API, and runs the step through the orchestrator.
package step

import (
	"errors"
	"time"

	"go_provision/internal/application"
	"go_provision/internal/github"
	"go_provision/internal/httpx"
	"go_provision/internal/model"
	"go_provision/internal/sshx"
	"go_provision/internal/steplog"
	"go_provision/internal/steps"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Target identifies the application a step runs against
type Target struct {
	Host            string `json:"host"`
	Username        string `json:"username"`
	ApplicationName string `json:"applicationName"`
}

func (t *Target) missingFields() []string {
	var missing []string
	if t.Host == "" {
		missing = append(missing, "host")
	}
	if t.Username == "" {
		missing = append(missing, "username")
	}
	if t.ApplicationName == "" {
		missing = append(missing, "applicationName")
	}
	return missing
}

// Handler handles step execution requests
type Handler struct {
	apps *application.Service
	log  *steplog.Service
	orch *steps.Orchestrator
}

// NewHandler creates a step handler
func NewHandler(apps *application.Service, log *steplog.Service, orch *steps.Orchestrator) *Handler {
	return &Handler{apps: apps, log: log, orch: orch}
}

// resolve looks up the application for a target. An unknown triple means
// connection verify never ran, which every step requires.
func (h *Handler) resolve(c *gin.Context, t Target, extraMissing []string) (*model.Application, bool) {
	missing := append(t.missingFields(), extraMissing...)
	if len(missing) > 0 {
		httpx.FailErr(c, httpx.ErrMissingFields(missing))
		return nil, false
	}

	app, err := h.apps.Find(t.Host, t.Username, t.ApplicationName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("application not found - run connection verify first"))
			return nil, false
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to resolve application", err))
		return nil, false
	}
	return app, true
}

// githubFor builds an authenticated client from the application's stored
// token; steps that talk to GitHub cannot run without one.
func (h *Handler) githubFor(c *gin.Context, app *model.Application) (steps.GitHubClient, bool) {
	if app.GithubToken == "" {
		httpx.FailErr(c, httpx.ErrPrecondition("no GitHub token found - run connection verify first"))
		return nil, false
	}
	return h.orch.NewGitHub(app.GithubToken), true
}

// respond translates a step result into the response envelope. Remote and
// API failures map to 502; everything else failed validation inside the step.
func respond(c *gin.Context, stepName string, res *steps.Result) {
	if res.Success {
		httpx.OK(c, gin.H{
			"step":    stepName,
			"message": res.Message,
			"data":    res.Data,
		})
		return
	}

	data := map[string]interface{}{"step": stepName}
	for k, v := range res.Data {
		data[k] = v
	}
	if res.Err != nil {
		data["error"] = res.Err.Error()
	}

	var appErr *httpx.AppError
	var connErr *sshx.ConnectionError
	var timeoutErr *sshx.TimeoutError
	var cmdErr *sshx.CommandError
	var apiErr *github.APIError
	switch {
	case errors.As(res.Err, &connErr), errors.As(res.Err, &timeoutErr),
		errors.As(res.Err, &cmdErr), errors.As(res.Err, &apiErr):
		appErr = httpx.ErrExternalError(res.Message, res.Err)
	default:
		appErr = httpx.ErrParamIllegal(res.Message)
	}
	httpx.FailErr(c, appErr.WithData(data))
}

// saveDerived persists state a successful step discovered about the target.
// Persistence failure is surfaced; the step itself already succeeded and was
// logged.
func (h *Handler) saveDerived(c *gin.Context, app *model.Application, updates map[string]interface{}) bool {
	if len(updates) == 0 {
		return true
	}
	if err := h.apps.UpdateFields(app.ID, updates); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("step succeeded but saving state failed", err))
		return false
	}
	return true
}

// DeployKeyRequest is the body for POST /step/deploy-key
type DeployKeyRequest struct {
	Target
	SelectedRepo string `json:"selectedRepo"`
}

// DeployKey generates and registers a repository deploy key
func (h *Handler) DeployKey(c *gin.Context) {
	var req DeployKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.SelectedRepo == "" {
		extra = append(extra, "selectedRepo")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}
	gh, ok := h.githubFor(c, app)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepDeployKey, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.GenerateDeployKey(run, gh, steps.DeployKeyInput{
			ApplicationName: app.ApplicationName,
			SelectedRepo:    req.SelectedRepo,
		})
	})
	if res.Success && !h.saveDerived(c, app, map[string]interface{}{"selected_repo": req.SelectedRepo}) {
		return
	}
	respond(c, model.StepDeployKey, res)
}

// DatabaseCreateRequest is the body for POST /step/database-create
type DatabaseCreateRequest struct {
	Target
	DBType     string `json:"dbType"`
	DBName     string `json:"dbName"`
	DBUsername string `json:"dbUsername"`
	DBPassword string `json:"dbPassword"`
	DBPort     int    `json:"dbPort"`
}

// DatabaseCreate provisions a database and user on the target host
func (h *Handler) DatabaseCreate(c *gin.Context) {
	var req DatabaseCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.DBType == "" {
		extra = append(extra, "dbType")
	}
	if req.DBName == "" {
		extra = append(extra, "dbName")
	}
	if req.DBUsername == "" {
		extra = append(extra, "dbUsername")
	}
	if req.DBPassword == "" {
		extra = append(extra, "dbPassword")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}

	input := steps.DatabaseInput{
		DBType:     req.DBType,
		DBName:     req.DBName,
		DBUsername: req.DBUsername,
		DBPassword: req.DBPassword,
		DBPort:     req.DBPort,
	}
	res := h.orch.Execute(app, model.StepDatabaseCreate, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.CreateDatabase(run, input)
	})
	if res.Success {
		// Remember the database config so env-update can be re-driven later.
		cfg := model.DatabaseConfig{
			ApplicationID: app.ID,
			DBType:        req.DBType,
			DBName:        req.DBName,
			DBUsername:    req.DBUsername,
			DBPort:        input.DefaultPort(),
			Status:        "created",
		}
		if err := h.apps.SaveDatabaseConfig(&cfg); err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("step succeeded but saving state failed", err))
			return
		}
	}
	respond(c, model.StepDatabaseCreate, res)
}

// FolderSetupRequest is the body for POST /step/folder-setup
type FolderSetupRequest struct {
	Target
	Pathname string `json:"pathname"`
}

// FolderSetup creates the application directory tree
func (h *Handler) FolderSetup(c *gin.Context) {
	var req FolderSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.Pathname == "" {
		extra = append(extra, "pathname")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepFolderSetup, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.SetupFolder(run, steps.FolderInput{
			Username: app.Username,
			Pathname: req.Pathname,
		})
	})
	if res.Success && !h.saveDerived(c, app, map[string]interface{}{"pathname": req.Pathname}) {
		return
	}
	respond(c, model.StepFolderSetup, res)
}

// EnvSetupRequest is the body for POST /step/env-setup
type EnvSetupRequest struct {
	Target
	Pathname     string `json:"pathname"`
	SelectedRepo string `json:"selectedRepo"`
}

// EnvSetup fetches the repository's env example and deploys it
func (h *Handler) EnvSetup(c *gin.Context) {
	var req EnvSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.Pathname == "" {
		extra = append(extra, "pathname")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}
	repo := req.SelectedRepo
	if repo == "" {
		repo = app.SelectedRepo
	}
	if repo == "" {
		httpx.FailErr(c, httpx.ErrMissingFields([]string{"selectedRepo"}))
		return
	}
	gh, ok := h.githubFor(c, app)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepEnvSetup, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.SetupEnv(run, gh, steps.EnvSetupInput{
			Pathname:     req.Pathname,
			SelectedRepo: repo,
		})
	})
	if res.Success && !h.saveDerived(c, app, map[string]interface{}{"pathname": req.Pathname, "selected_repo": repo}) {
		return
	}
	respond(c, model.StepEnvSetup, res)
}

// EnvUpdateRequest is the body for POST /step/env-update
type EnvUpdateRequest struct {
	Target
	Pathname   string `json:"pathname"`
	DBType     string `json:"dbType"`
	DBName     string `json:"dbName"`
	DBUsername string `json:"dbUsername"`
	DBPassword string `json:"dbPassword"`
	DBPort     int    `json:"dbPort"`
}

// EnvUpdate patches the deployed env file with database credentials
func (h *Handler) EnvUpdate(c *gin.Context) {
	var req EnvUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.Pathname == "" {
		extra = append(extra, "pathname")
	}
	if req.DBType == "" {
		extra = append(extra, "dbType")
	}
	if req.DBName == "" {
		extra = append(extra, "dbName")
	}
	if req.DBUsername == "" {
		extra = append(extra, "dbUsername")
	}
	// dbPassword is optional here: an empty value writes DB_PASSWORD= bare.
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepEnvUpdate, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.UpdateEnv(run, steps.EnvUpdateInput{
			Pathname: req.Pathname,
			Database: steps.DatabaseInput{
				DBType:     req.DBType,
				DBName:     req.DBName,
				DBUsername: req.DBUsername,
				DBPassword: req.DBPassword,
				DBPort:     req.DBPort,
			},
		})
	})
	respond(c, model.StepEnvUpdate, res)
}

// SSHKeySetupRequest is the body for POST /step/ssh-key-setup
type SSHKeySetupRequest struct {
	Target
	SelectedRepo string `json:"selectedRepo"`
}

// SSHKeySetup provisions the CI deploy key and Actions secret
func (h *Handler) SSHKeySetup(c *gin.Context) {
	var req SSHKeySetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.SelectedRepo == "" {
		extra = append(extra, "selectedRepo")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}
	gh, ok := h.githubFor(c, app)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepSSHKeySetup, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.SetupSSHKey(run, gh, steps.SSHKeyInput{
			ApplicationName: app.ApplicationName,
			SelectedRepo:    req.SelectedRepo,
		})
	})
	if res.Success {
		updates := map[string]interface{}{
			"selected_repo":           req.SelectedRepo,
			"private_key_secret_name": steps.SecretName(app.ApplicationName),
		}
		if !h.saveDerived(c, app, updates) {
			return
		}
	}
	respond(c, model.StepSSHKeySetup, res)
}

// ServerStackSetupRequest is the body for POST /step/server-stack-setup
type ServerStackSetupRequest struct {
	Target
	PHPVersion string `json:"phpVersion"`
	Database   string `json:"database"`
}

// ServerStackSetup installs the PHP/nginx/database stack
func (h *Handler) ServerStackSetup(c *gin.Context) {
	var req ServerStackSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	app, ok := h.resolve(c, req.Target, nil)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepServerStackSetup, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.SetupServerStack(run, steps.ServerStackInput{
			PHPVersion: req.PHPVersion,
			Database:   req.Database,
		})
	})
	respond(c, model.StepServerStackSetup, res)
}

// HTTPSNginxSetupRequest is the body for POST /step/https-nginx-setup
type HTTPSNginxSetupRequest struct {
	Target
	Domain   string `json:"domain"`
	Email    string `json:"email"`
	Pathname string `json:"pathname"`
}

// HTTPSNginxSetup configures nginx for the domain and obtains a certificate
func (h *Handler) HTTPSNginxSetup(c *gin.Context) {
	var req HTTPSNginxSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.Domain == "" {
		extra = append(extra, "domain")
	}
	if req.Email == "" {
		extra = append(extra, "email")
	}
	if req.Pathname == "" {
		extra = append(extra, "pathname")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepHTTPSNginxSetup, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.SetupHTTPSNginx(run, steps.HTTPSNginxInput{
			ApplicationName: app.ApplicationName,
			Domain:          req.Domain,
			Email:           req.Email,
			Pathname:        req.Pathname,
		})
	})
	if res.Success && !h.saveDerived(c, app, map[string]interface{}{"domain": req.Domain, "pathname": req.Pathname}) {
		return
	}
	respond(c, model.StepHTTPSNginxSetup, res)
}

// NodeNVMSetupRequest is the body for POST /step/node-nvm-setup
type NodeNVMSetupRequest struct {
	Target
	NodeVersion string `json:"nodeVersion"`
}

// NodeNVMSetup installs NVM and Node on the target host
func (h *Handler) NodeNVMSetup(c *gin.Context) {
	var req NodeNVMSetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	app, ok := h.resolve(c, req.Target, nil)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepNodeNVMSetup, true, func(run sshx.CommandRunner) *steps.Result {
		return steps.SetupNodeNVM(run, steps.NodeNVMInput{NodeVersion: req.NodeVersion})
	})
	respond(c, model.StepNodeNVMSetup, res)
}

// DeployWorkflowUpdateRequest is the body for POST /step/deploy-workflow-update
type DeployWorkflowUpdateRequest struct {
	Target
	SelectedRepo     string `json:"selectedRepo"`
	BaseBranch       string `json:"baseBranch"`
	SSHPath          string `json:"sshPath"`
	CreateBaseBranch bool   `json:"createBaseBranch"`
}

// DeployWorkflowUpdate commits the deploy config and opens a pull request.
// This is the closing step: on success the application is marked completed.
func (h *Handler) DeployWorkflowUpdate(c *gin.Context) {
	var req DeployWorkflowUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	var extra []string
	if req.BaseBranch == "" {
		extra = append(extra, "baseBranch")
	}
	app, ok := h.resolve(c, req.Target, extra)
	if !ok {
		return
	}
	repo := req.SelectedRepo
	if repo == "" {
		repo = app.SelectedRepo
	}
	if repo == "" {
		httpx.FailErr(c, httpx.ErrMissingFields([]string{"selectedRepo"}))
		return
	}
	sshPath := req.SSHPath
	if sshPath == "" {
		sshPath = app.Pathname
	}
	if sshPath == "" {
		httpx.FailErr(c, httpx.ErrMissingFields([]string{"sshPath"}))
		return
	}
	gh, ok := h.githubFor(c, app)
	if !ok {
		return
	}

	res := h.orch.Execute(app, model.StepDeployWorkflowUpdate, false, func(run sshx.CommandRunner) *steps.Result {
		return steps.UpdateDeployWorkflow(gh, steps.WorkflowInput{
			ApplicationName:  app.ApplicationName,
			SelectedRepo:     repo,
			Host:             app.Host,
			Username:         app.Username,
			Port:             app.Port,
			SSHPath:          sshPath,
			BaseBranch:       req.BaseBranch,
			CreateBaseBranch: req.CreateBaseBranch,
		})
	})
	if res.Success {
		now := time.Now()
		updates := map[string]interface{}{
			"selected_repo": repo,
			"status":        model.ApplicationStatusCompleted,
			"completed_at":  &now,
		}
		if !h.saveDerived(c, app, updates) {
			return
		}
	}
	respond(c, model.StepDeployWorkflowUpdate, res)
}

// List handles GET /steps/:host/:username/:applicationName
func (h *Handler) List(c *gin.Context) {
	t := Target{
		Host:            c.Param("host"),
		Username:        c.Param("username"),
		ApplicationName: c.Param("applicationName"),
	}
	app, ok := h.resolve(c, t, nil)
	if !ok {
		return
	}

	entries, err := h.log.List(app.ID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load steps", err))
		return
	}

	httpx.OK(c, gin.H{
		"application": app,
		"steps":       entries,
	})
}
