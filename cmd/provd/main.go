package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "go_provision/api/v1"
	"go_provision/internal/application"
	"go_provision/internal/auth"
	"go_provision/internal/cache"
	"go_provision/internal/config"
	"go_provision/internal/db"
	"go_provision/internal/session"
	"go_provision/internal/steplog"
	"go_provision/internal/steps"
	"go_provision/internal/ws"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.GetDB()); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
		log.Println("✓ Database migrated")
	}

	// 3. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 4. Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)

	// 5. Initialize Socket.IO
	if err := ws.InitServer(); err != nil {
		log.Fatalf("Failed to initialize Socket.IO: %v", err)
		os.Exit(1)
	}

	// 6. Build shared services
	apps := application.NewService(db.GetDB())
	stepLog := steplog.NewService(db.GetDB())
	sessions := session.NewStore(cache.Client, time.Duration(cfg.Session.TTLMinutes)*time.Minute)

	orch := &steps.Orchestrator{
		Apps:            apps,
		Log:             stepLog,
		Locks:           application.NewLockSet(),
		Events:          ws.Publisher{},
		Dial:            steps.DefaultDialer,
		NewGitHub:       v1.NewGitHubFactory(cfg),
		SSHReadyTimeout: time.Duration(cfg.SSH.ReadyTimeoutSec) * time.Second,
		Logger:          logrus.WithField("component", "orchestrator"),
	}

	// 7. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	v1.SetupRouter(r, &v1.Deps{
		DB:       db.GetDB(),
		Cfg:      cfg,
		Apps:     apps,
		Log:      stepLog,
		Sessions: sessions,
		Orch:     orch,
	})

	// Socket.IO endpoint with JWT handshake auth
	r.GET("/socket.io/*any", gin.WrapH(ws.WrapWithAuth(ws.Server)))
	r.POST("/socket.io/*any", gin.WrapH(ws.WrapWithAuth(ws.Server)))

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
