package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/complaintdesk/backend/internal/config"
	"github.com/complaintdesk/backend/internal/db"
	"github.com/complaintdesk/backend/internal/logger"
	"github.com/complaintdesk/backend/internal/middleware"
	"github.com/complaintdesk/backend/internal/notify"
	"github.com/complaintdesk/backend/internal/routes"
	"github.com/complaintdesk/backend/internal/services"
	"github.com/complaintdesk/backend/internal/store"
	"github.com/complaintdesk/backend/internal/store/gormstore"
	"github.com/complaintdesk/backend/internal/store/memstore"
	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

func main() {
	// Load environment variables
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Failed to read .env file, using environment variables", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	logger.Initialize(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Dir: cfg.LogDir})

	// Pick the store
	var (
		repo    store.Repository
		staff   store.StaffDirectory
		backend string
	)
	if cfg.HasDatabase() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
		}
		if err := db.AutoMigrate(conn); err != nil {
			logger.Fatal("Failed to migrate database", map[string]interface{}{"error": err.Error()})
		}
		pg := gormstore.New(conn)
		repo, staff, backend = pg, pg, "postgres"
	} else {
		if cfg.IsProduction() {
			logger.Fatal("A database is required in production", nil)
		}
		logger.Warn("No database configured, complaints are kept in memory", nil)
		mem := memstore.New()
		repo, staff, backend = mem, mem, "memory"
	}

	// Notifications
	sinks, err := notify.BuildSinks(context.Background(), notify.Settings{
		Sinks:        cfg.NotifySinks,
		KafkaBrokers: cfg.KafkaBrokers,
		KafkaTopic:   cfg.KafkaTopic,
		SQSQueueURL:  cfg.SQSQueueURL,
		SQSQueueName: cfg.SQSQueueName,
	})
	if err != nil {
		logger.Fatal("Failed to set up notifications", map[string]interface{}{"error": err.Error()})
	}
	dispatcher := notify.NewDispatcher(sinks, notify.DispatcherOptions{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Timeout:   cfg.NotifyTimeout,
	})

	complaints := services.NewComplaintService(repo, staff, dispatcher, services.OptionsFromConfig(cfg))

	// Set Gin mode
	if cfg.GinMode == "release" || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.Use(middleware.CustomLoggerMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigin))
	r.Use(gin.Recovery())

	routes.SetupRoutes(r, routes.Dependencies{
		Complaints:   complaints,
		JWTSecret:    cfg.JWTSecret,
		AuthRequired: cfg.AuthRequired,
		Backend:      backend,
		Version:      version,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	logger.Info("Starting complaint desk server", map[string]interface{}{
		"port":     cfg.Port,
		"gin_mode": gin.Mode(),
		"store":    backend,
		"sinks":    cfg.NotifySinks,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
	logger.Info("Shutting down server gracefully...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Flush notifications for requests that completed before shutdown
	dispatcher.Close()
	logger.Info("Server exited gracefully", map[string]interface{}{
		"dropped_notifications": dispatcher.Dropped(),
	})
}
