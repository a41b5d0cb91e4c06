package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/complaintdesk/backend/internal/config"
	"github.com/complaintdesk/backend/internal/db"
	"github.com/complaintdesk/backend/internal/lifecycle"
	"github.com/complaintdesk/backend/internal/logger"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/services"
	"github.com/complaintdesk/backend/internal/store/gormstore"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// StaffData is one staff member in the seed file
type StaffData struct {
	StaffID   string `json:"staffId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Specialty string `json:"specialty"`
}

// ComplaintData is one sample complaint, optionally assigned on creation
type ComplaintData struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Priority    string `json:"priority"`
	Citizen     struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"citizen"`
	AssignTo string `json:"assignTo"`
}

// SeedData represents the structure of the seed file
type SeedData struct {
	Staff      []StaffData     `json:"staff"`
	Complaints []ComplaintData `json:"complaints"`
}

func main() {
	path := flag.String("file", "data/seed.json", "seed file to load")
	withComplaints := flag.Bool("complaints", true, "also file the sample complaints")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("Failed to read .env file, using environment variables", map[string]interface{}{"error": err.Error()})
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	logger.Initialize(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if !cfg.HasDatabase() {
		logger.Fatal("Seeding needs DATABASE_URL or DB_HOST", nil)
	}

	data, err := loadSeedFile(*path)
	if err != nil {
		logger.Fatal("Failed to read seed file", map[string]interface{}{"error": err.Error(), "file": *path})
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	if err := db.AutoMigrate(conn); err != nil {
		logger.Fatal("Failed to migrate database", map[string]interface{}{"error": err.Error()})
	}

	created := seedStaff(conn, data.Staff)
	logger.Info("Staff seeding completed", map[string]interface{}{"created": created, "total": len(data.Staff)})

	if *withComplaints {
		pg := gormstore.New(conn)
		svc := services.NewComplaintService(pg, pg, nil, services.OptionsFromConfig(cfg))
		filed := seedComplaints(context.Background(), svc, data.Complaints)
		logger.Info("Complaint seeding completed", map[string]interface{}{"filed": filed, "total": len(data.Complaints)})
	}
}

func loadSeedFile(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var data SeedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &data, nil
}

func seedStaff(conn *gorm.DB, staff []StaffData) int {
	created := 0
	for _, s := range staff {
		role := models.ActorRole(strings.ToLower(s.Role))
		if role != models.RoleOfficer && role != models.RoleTechnician && role != models.RoleAdmin {
			logger.Warn("Unknown staff role, defaulting to officer", map[string]interface{}{"email": s.Email, "role": s.Role})
			role = models.RoleOfficer
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.WithError(err, "seed").WithField("email", s.Email).Error("Failed to hash password")
			continue
		}

		user := models.User{
			StaffID:   s.StaffID,
			Email:     strings.ToLower(s.Email),
			Password:  string(hashedPassword),
			Name:      s.Name,
			Phone:     s.Phone,
			Role:      role,
			Specialty: s.Specialty,
			Active:    true,
		}

		var existing models.User
		err = conn.Where("email = ? OR staff_id = ?", user.Email, user.StaffID).First(&existing).Error
		switch {
		case err == nil:
			logger.Info("Staff member already exists", map[string]interface{}{"email": user.Email})
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := conn.Create(&user).Error; err != nil {
				logger.WithError(err, "seed").WithField("email", user.Email).Error("Failed to create staff member")
				continue
			}
			created++
			logger.Info("Created staff member", map[string]interface{}{"email": user.Email, "role": user.Role})
		default:
			logger.WithError(err, "seed").WithField("email", user.Email).Error("Failed to look up staff member")
		}
	}
	return created
}

func seedComplaints(ctx context.Context, svc *services.ComplaintService, complaints []ComplaintData) int {
	seeder := lifecycle.Actor{Name: "Seeder", Role: models.RoleSystem}
	filed := 0
	for _, d := range complaints {
		c, err := svc.Create(ctx, lifecycle.CreateInput{
			Category:     d.Category,
			Description:  d.Description,
			Location:     d.Location,
			Priority:     d.Priority,
			CitizenName:  d.Citizen.Name,
			CitizenEmail: d.Citizen.Email,
			CitizenPhone: d.Citizen.Phone,
		})
		if err != nil {
			logger.WithError(err, "seed").WithField("location", d.Location).Error("Failed to file complaint")
			continue
		}
		filed++

		if d.AssignTo == "" {
			continue
		}
		if _, err := svc.Assign(ctx, c.ComplaintID, lifecycle.AssignRequest{TechnicianID: d.AssignTo, AssignedBy: seeder}); err != nil {
			logger.WithError(err, "seed").WithField("complaint_id", c.ComplaintID).Warn("Failed to assign sample complaint")
		}
	}
	return filed
}
