package db

import (
	"fmt"
	"time"

	"github.com/complaintdesk/backend/internal/config"
	"github.com/complaintdesk/backend/internal/logger"
	"github.com/complaintdesk/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the PostgreSQL connection. TranslateError is required by the
// store so unique violations come back as gorm.ErrDuplicatedKey.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Error
	if cfg.LogLevel == "DEBUG" {
		level = gormlogger.Info
	}

	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Info("Database connected successfully", map[string]interface{}{
		"dsn": cfg.RedactedDSN(),
	})
	return conn, nil
}

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(conn *gorm.DB) error {
	tables := []interface{}{
		&models.User{},
		&models.Complaint{},
		&models.TimelineEntry{},
		&models.ProgressUpdate{},
	}
	for _, table := range tables {
		if err := conn.AutoMigrate(table); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", table, err)
		}
	}
	logger.Info("All database migrations completed successfully", map[string]interface{}{
		"tables": len(tables),
	})
	return nil
}
