package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/complaintdesk/backend/internal/config"
	"github.com/complaintdesk/backend/internal/db"
	"github.com/complaintdesk/backend/internal/logger"
	"github.com/complaintdesk/backend/internal/middleware"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/store/gormstore"
)

// devtoken mints a bearer token for local testing. With -email the staff
// record is looked up in the database, otherwise the flags describe the actor.
func main() {
	email := flag.String("email", "", "look up an active staff member by email")
	staffID := flag.String("id", "ADM-01", "staff id when no email is given")
	name := flag.String("name", "Dev Admin", "display name when no email is given")
	role := flag.String("role", string(models.RoleAdmin), "role when no email is given")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Failed to read .env file, using environment variables", map[string]interface{}{"error": err.Error()})
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	user := models.User{StaffID: *staffID, Name: *name, Role: models.ActorRole(*role)}
	if *email != "" {
		if !cfg.HasDatabase() {
			logger.Fatal("Looking up staff needs DATABASE_URL or DB_HOST", nil)
		}
		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
		}
		found, err := gormstore.New(conn).FindByEmail(context.Background(), *email)
		if err != nil {
			logger.Fatal("Staff member not found", map[string]interface{}{"email": *email, "error": err.Error()})
		}
		user = *found
	} else if !user.Role.Valid() {
		logger.Fatal("Unknown role", map[string]interface{}{"role": *role})
	}

	token, expiresAt, err := middleware.IssueToken(cfg.JWTSecret, user, *ttl, time.Now())
	if err != nil {
		logger.Fatal("Failed to issue token", map[string]interface{}{"error": err.Error()})
	}

	fmt.Fprintf(os.Stderr, "Token for %s (%s), expires %s\n", user.Name, user.Role, expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
