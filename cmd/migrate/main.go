package main

import (
	"github.com/complaintdesk/backend/internal/config"
	"github.com/complaintdesk/backend/internal/db"
	"github.com/complaintdesk/backend/internal/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Failed to read .env file, using environment variables", map[string]interface{}{"error": err.Error()})
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if !cfg.HasDatabase() {
		logger.Fatal("Migrations need DATABASE_URL or DB_HOST", nil)
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Running database migrations...", nil)
	if err := db.AutoMigrate(conn); err != nil {
		logger.Fatal("Database migrations failed", map[string]interface{}{"error": err.Error()})
	}
}
