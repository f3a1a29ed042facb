package v1

import (
	"time"

	"go_provision/api/v1/applications"
	"go_provision/api/v1/auth"
	"go_provision/api/v1/connection"
	githubapi "go_provision/api/v1/github"
	"go_provision/api/v1/middleware"
	"go_provision/api/v1/step"
	"go_provision/api/v1/suggestions"
	"go_provision/internal/application"
	"go_provision/internal/config"
	"go_provision/internal/github"
	"go_provision/internal/httpx"
	"go_provision/internal/session"
	"go_provision/internal/steplog"
	"go_provision/internal/steps"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps carries the shared services the API handlers depend on
type Deps struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Apps     *application.Service
	Log      *steplog.Service
	Sessions *session.Store
	Orch     *steps.Orchestrator
}

// NewGitHubFactory returns the client constructor used by the orchestrator
// and handlers, bound to the configured base URLs.
func NewGitHubFactory(cfg *config.Config) func(token string) steps.GitHubClient {
	return func(token string) steps.GitHubClient {
		return github.NewClient(token, cfg.GitHub.APIBase, cfg.GitHub.RawBase)
	}
}

// SetupRouter sets up the API v1 routes
func SetupRouter(r *gin.Engine, deps *Deps) {
	v1 := r.Group("/api/v1")
	{
		// Public routes (no authentication required)
		v1.GET("/health", healthHandler)

		connHandler := connection.NewHandler(deps.Apps, deps.Log, deps.Sessions, deps.Orch, deps.Cfg)
		v1.POST("/connection/verify", connHandler.Verify)

		stepHandler := step.NewHandler(deps.Apps, deps.Log, deps.Orch)
		stepGroup := v1.Group("/step")
		{
			stepGroup.POST("/deploy-key", stepHandler.DeployKey)
			stepGroup.POST("/database-create", stepHandler.DatabaseCreate)
			stepGroup.POST("/folder-setup", stepHandler.FolderSetup)
			stepGroup.POST("/env-setup", stepHandler.EnvSetup)
			stepGroup.POST("/env-update", stepHandler.EnvUpdate)
			stepGroup.POST("/ssh-key-setup", stepHandler.SSHKeySetup)
			stepGroup.POST("/server-stack-setup", stepHandler.ServerStackSetup)
			stepGroup.POST("/https-nginx-setup", stepHandler.HTTPSNginxSetup)
			stepGroup.POST("/node-nvm-setup", stepHandler.NodeNVMSetup)
			stepGroup.POST("/deploy-workflow-update", stepHandler.DeployWorkflowUpdate)
		}

		v1.GET("/steps/:host/:username/:applicationName", stepHandler.List)

		suggestionsHandler := suggestions.NewHandler(deps.DB)
		v1.POST("/suggestions", suggestionsHandler.Create)

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", auth.LoginHandler(deps.DB, deps.Cfg))
		}

		// Protected routes (authentication required)
		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/me", meHandler)

			appsHandler := applications.NewHandler(deps.Apps, deps.Log)
			protected.GET("/applications", appsHandler.List)
			protected.GET("/applications/:id", appsHandler.Get)

			protected.GET("/suggestions", suggestionsHandler.List)

			githubHandler := githubapi.NewHandler(deps.Apps, deps.Cfg)
			protected.GET("/github/repos", githubHandler.Repos)
		}
	}
}

// healthHandler reports liveness
func healthHandler(c *gin.Context) {
	httpx.OK(c, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// meHandler returns current user information
func meHandler(c *gin.Context) {
	uid, _ := c.Get("uid")
	username, _ := c.Get("username")
	role, _ := c.Get("role")

	httpx.OK(c, gin.H{
		"uid":      uid,
		"username": username,
		"role":     role,
	})
}
