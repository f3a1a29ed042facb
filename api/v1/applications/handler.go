package applications

import (
	"errors"
	"strconv"

	"go_provision/internal/application"
	"go_provision/internal/httpx"
	"go_provision/internal/steplog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles application listing requests
type Handler struct {
	apps *application.Service
	log  *steplog.Service
}

// NewHandler creates an applications handler
func NewHandler(apps *application.Service, log *steplog.Service) *Handler {
	return &Handler{apps: apps, log: log}
}

// List returns all provisioning targets, newest first. Credentials are never
// included.
func (h *Handler) List(c *gin.Context) {
	apps, err := h.apps.List()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list applications", err))
		return
	}
	httpx.OK(c, gin.H{
		"items": apps,
		"total": len(apps),
	})
}

// Get returns one application with its step history
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid application id"))
		return
	}

	app, err := h.apps.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("application not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to load application", err))
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
