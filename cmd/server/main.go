package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peoplecore/hrflow/internal/attachments"
	"github.com/peoplecore/hrflow/internal/auth"
	"github.com/peoplecore/hrflow/internal/config"
	"github.com/peoplecore/hrflow/internal/database"
	"github.com/peoplecore/hrflow/internal/middleware"
	"github.com/peoplecore/hrflow/internal/notification"
	"github.com/peoplecore/hrflow/internal/workflow"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	slog.Info("configuration loaded successfully",
		"db_host", cfg.Database.Host,
		"db_port", cfg.Database.Port,
		"db_name", cfg.Database.Name,
		"db_sslmode", cfg.Database.SSLMode,
	)

	slog.Info("server configuration",
		"port", cfg.Server.Port,
		"sweep_interval_seconds", cfg.Scheduler.SweepIntervalSeconds,
	)

	// Initialize database connection
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("database health check failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Notification gateway: NATS when configured, log-only otherwise
	var gateway notification.Gateway
	if cfg.NATS.URL != "" {
		natsGateway, err := notification.NewNATSGateway(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer natsGateway.Close()
		gateway = natsGateway
	} else {
		slog.Info("NATS_URL not set, notifications will be logged only")
		gateway = notification.NewLogGateway()
	}

	// Attachment storage
	blobStore, err := attachments.NewBlobStoreFromConfig(context.Background(), cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize attachment storage: %v", err)
	}
	attachmentService := attachments.NewService(db, blobStore)

	// Workflow manager owns the engine, scheduler, and notification dispatcher
	wm := workflow.NewManager(db, cfg, gateway, attachmentService)
	wm.Start()

	// HTTP surface
	authService := auth.NewAuthService(db)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(&cfg.CORS))

	engine.GET("/healthz", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api", auth.Middleware(authService))
	wm.RegisterRoutes(api)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: engine,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	} else {
		slog.Info("server gracefully stopped")
	}

	slog.Info("stopping workflow manager...")
	wm.Stop()

	slog.Info("server stopped")
}
