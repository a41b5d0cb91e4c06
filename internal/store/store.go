// Package store is the persistence contract the complaint service depends on.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/complaintdesk/backend/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned by Insert when the complaint identifier or
	// its sequence number is already taken.
	ErrDuplicateID = errors.New("duplicate complaint identifier")
	// ErrVersionConflict is returned by Save when the stored version no longer
	// matches the one the caller read.
	ErrVersionConflict = errors.New("complaint version conflict")
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Filter narrows a complaint listing. Zero values mean "any".
type Filter struct {
	Status       models.ComplaintStatus
	Category     models.ComplaintCategory
	Priority     models.ComplaintPriority
	CitizenEmail string
	TechnicianID string
	Limit        int
	Skip         int
	Sort         string
	Desc         bool
}

var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"complaintId": "seq",
	"priority":    "priority",
	"status":      "status",
}

// Normalize clamps paging and resolves the sort key. The default listing is
// newest first.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	if _, ok := sortColumns[f.Sort]; !ok {
		f.Sort = "createdAt"
		f.Desc = true
	}
	f.CitizenEmail = strings.ToLower(strings.TrimSpace(f.CitizenEmail))
	return f
}

// SortColumn returns the column backing the normalized sort key.
func (f Filter) SortColumn() string {
	if col, ok := sortColumns[f.Sort]; ok {
		return col
	}
	return "created_at"
}

// Page is one slice of a listing plus the number of matches overall.
type Page struct {
	Complaints []models.Complaint
	Total      int64
}

// Repository persists complaints together with their timeline and progress rows.
type Repository interface {
	// MaxSeq returns the highest complaint sequence number ever issued,
	// including soft-deleted complaints, or 0 when there are none.
	MaxSeq(ctx context.Context) (int64, error)
	// Insert stores a new complaint with its initial timeline.
	Insert(ctx context.Context, c *models.Complaint) error
	Get(ctx context.Context, complaintID string) (*models.Complaint, error)
	List(ctx context.Context, f Filter) (Page, error)
	// All returns every live complaint without children, for aggregation.
	All(ctx context.Context) ([]models.Complaint, error)
	// Save writes c if the stored version still equals expectedVersion, and
	// inserts entries and updates in the same atomic step. On success the
	// version is incremented on c.
	Save(ctx context.Context, c *models.Complaint, expectedVersion int, entries []models.TimelineEntry, updates []models.ProgressUpdate) error
	Delete(ctx context.Context, complaintID string) error
	Ping(ctx context.Context) error
}

// StaffDirectory resolves staff members referenced by lifecycle operations.
type StaffDirectory interface {
	FindTechnician(ctx context.Context, staffID string) (*models.User, error)
	// FindByEmail returns an active staff member of any role.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}
