package suggestions

import (
	"strings"

	"go_provision/internal/httpx"
	"go_provision/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles suggestion requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a suggestions handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateRequest is the body for the public suggestion endpoint
type CreateRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Create handles POST /suggestions (public, no auth)
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httpx.FailErr(c, httpx.ErrMissingFields([]string{"message"}))
		return
	}

	suggestion := model.Suggestion{
		Email:   strings.TrimSpace(req.Email),
		Message: strings.TrimSpace(req.Message),
		Status:  model.SuggestionStatusNew,
	}
	if err := h.db.Create(&suggestion).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to save suggestion", err))
		return
	}

	httpx.OK(c, gin.H{"id": suggestion.ID})
}

// List handles GET /suggestions (admin)
func (h *Handler) List(c *gin.Context) {
	var items []model.Suggestion
	if err := h.db.Order("id DESC").Find(&items).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to list suggestions", err))
		return
	}
	httpx.OK(c, gin.H{
		"items": items,
		"total": len(items),
	})
}
