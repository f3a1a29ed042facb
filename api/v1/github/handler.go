package github

import (
	"errors"
	"strconv"

	"go_provision/internal/application"
	"go_provision/internal/config"
	gh "go_provision/internal/github"
	"go_provision/internal/httpx"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler proxies repository listing for a verified application, so the UI
// can offer a repo picker without ever holding the token itself.
type Handler struct {
	apps *application.Service
	cfg  *config.Config
}

// NewHandler creates a github handler
func NewHandler(apps *application.Service, cfg *config.Config) *Handler {
	return &Handler{apps: apps, cfg: cfg}
}

// Repos handles GET /github/repos?applicationId=N&page=1&perPage=50
func (h *Handler) Repos(c *gin.Context) {
	id, err := strconv.Atoi(c.Query("applicationId"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("applicationId is required"))
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
	if app.GithubToken == "" {
		httpx.FailErr(c, httpx.ErrPrecondition("no GitHub token found - run connection verify first"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("perPage", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	client := gh.NewClient(app.GithubToken, h.cfg.GitHub.APIBase, h.cfg.GitHub.RawBase)
	repos, err := client.ListRepos(page, perPage)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("failed to list repositories", err))
		return
	}

	httpx.OK(c, gin.H{
		"items":   repos,
		"page":    page,
		"perPage": perPage,
	})
}
