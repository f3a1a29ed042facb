// Package connection implements the verify endpoint: the entry point of a
// provisioning flow. It checks SSH and GitHub connectivity, stores the target
// and its credentials, and opens a verify session for subsequent steps.
package connection

import (
	"time"

	"go_provision/internal/config"
	"go_provision/internal/httpx"
	"go_provision/internal/model"
	"go_provision/internal/session"
	"go_provision/internal/steplog"
	"go_provision/internal/steps"

	"github.com/gin-gonic/gin"
)

// VerifyRequest represents the connection verify request body. The key
// material field is privateKeyContent; privateKey is accepted as an alias
// for older clients.
type VerifyRequest struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Username          string `json:"username"`
	ApplicationName   string `json:"applicationName"`
	PrivateKeyContent string `json:"privateKeyContent"`
	PrivateKey        string `json:"privateKey"`
	GithubToken       string `json:"githubToken"`
}

// privateKeyMaterial coalesces the canonical field with its legacy alias
func (r *VerifyRequest) privateKeyMaterial() string {
	if r.PrivateKeyContent != "" {
		return r.PrivateKeyContent
	}
	return r.PrivateKey
}

func (r *VerifyRequest) missingFields() []string {
	var missing []string
	if r.Host == "" {
		missing = append(missing, "host")
	}
	if r.Username == "" {
		missing = append(missing, "username")
	}
	if r.ApplicationName == "" {
		missing = append(missing, "applicationName")
	}
	if r.privateKeyMaterial() == "" {
		missing = append(missing, "privateKeyContent")
	}
	return missing
}

// applicationStore is the slice of the application service this handler
// needs. *application.Service implements it.
type applicationStore interface {
	Find(host, username, applicationName string) (*model.Application, error)
	Upsert(app *model.Application) (*model.Application, error)
}

// Handler handles connection verification
type Handler struct {
	apps     applicationStore
	log      steplog.Recorder
	sessions *session.Store
	orch     *steps.Orchestrator
	cfg      *config.Config
}

// NewHandler creates a connection handler
func NewHandler(apps applicationStore, log steplog.Recorder, sessions *session.Store, orch *steps.Orchestrator, cfg *config.Config) *Handler {
	return &Handler{apps: apps, log: log, sessions: sessions, orch: orch, cfg: cfg}
}

// Verify handles POST /connection/verify. On success the target is upserted
// with its credentials and a session id is issued; on failure nothing is
// persisted beyond the step log of the attempt.
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	if missing := req.missingFields(); len(missing) > 0 {
		httpx.FailErr(c, httpx.ErrMissingFields(missing))
		return
	}
	if req.Port == 0 {
		req.Port = 22
	}

	privateKey := req.privateKeyMaterial()
	res := steps.VerifyConnection(h.orch.Dial, h.orch.NewGitHub, steps.VerifyInput{
		Host:            req.Host,
		Port:            req.Port,
		Username:        req.Username,
		PrivateKey:      privateKey,
		GithubToken:     req.GithubToken,
		ApplicationName: req.ApplicationName,
		ReadyTimeout:    h.orch.SSHReadyTimeout,
	})

	if !res.Success {
		// Record the failed attempt when the target is already known; an
		// unverified target has no application row to attach the log to.
		if app, err := h.apps.Find(req.Host, req.Username, req.ApplicationName); err == nil {
			payload := map[string]interface{}{"message": res.Message, "data": res.Data}
			if res.Err != nil {
				payload["error"] = res.Err.Error()
			}
			_ = h.log.Record(app.ID, model.StepConnectionVerify, model.StepStatusFailed, payload)
		}
		// Unreachable host or a rejected GitHub token is an upstream
		// failure, not a bad request.
		httpx.FailErr(c, httpx.ErrExternalError(res.Message, res.Err).WithData(res.Data))
		return
	}

	app, err := h.apps.Upsert(&model.Application{
		Host:            req.Host,
		Port:            req.Port,
		Username:        req.Username,
		ApplicationName: req.ApplicationName,
		SSHPrivateKey:   privateKey,
		GithubToken:     req.GithubToken,
	})
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to save application", err))
		return
	}

	if err := h.log.Record(app.ID, model.StepConnectionVerify, model.StepStatusSuccess,
		map[string]interface{}{"message": res.Message, "data": res.Data}); err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to record step", err))
		return
	}

	sessionID, err := h.sessions.Create(c.Request.Context(), session.Data{
		ApplicationID: app.ID,
		Host:          app.Host,
		Username:      app.Username,
	})
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to create session", err))
		return
	}

	httpx.OK(c, gin.H{
		"sessionId":     sessionID,
		"applicationId": app.ID,
		"expiresAt":     time.Now().Add(time.Duration(h.cfg.Session.TTLMinutes) * time.Minute).Format(time.RFC3339),
		"connections":   res.Data["connections"],
	})
}
