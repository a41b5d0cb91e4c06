// Package memstore is an in-process Repository used by tests and by the
// server when no database is configured. It enforces the same uniqueness and
// version rules as the SQL store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/store"
	"gorm.io/gorm"
)

var (
	_ store.Repository     = (*Store)(nil)
	_ store.StaffDirectory = (*Store)(nil)
)

type Store struct {
	mu         sync.RWMutex
	complaints map[string]*models.Complaint
	seqs       map[int64]string
	maxSeq     int64
	staff      map[string]models.User
	nextRowID  uint
}

func New() *Store {
	return &Store{
		complaints: make(map[string]*models.Complaint),
		seqs:       make(map[int64]string),
		staff:      make(map[string]models.User),
	}
}

// AddStaff registers staff members for FindTechnician.
func (s *Store) AddStaff(users ...models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.staff[u.StaffID] = u
	}
}

func (s *Store) FindTechnician(ctx context.Context, staffID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.staff[staffID]
	if !ok || !u.Active || u.Role != models.RoleTechnician {
		return nil, fmt.Errorf("technician %s: %w", staffID, store.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.staff {
		if u.Active && strings.ToLower(u.Email) == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("staff member %s: %w", email, store.ErrNotFound)
}

func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSeq, nil
}

func (s *Store) Insert(ctx context.Context, c *models.Complaint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.complaints[c.ComplaintID]; ok {
		return fmt.Errorf("insert complaint %s: %w", c.ComplaintID, store.ErrDuplicateID)
	}
	if _, ok := s.seqs[c.Seq]; ok {
		return fmt.Errorf("insert complaint %s (seq %d): %w", c.ComplaintID, c.Seq, store.ErrDuplicateID)
	}

	if c.Version == 0 {
		c.Version = 1
	}
	s.nextRowID++
	c.ID = s.nextRowID

	s.complaints[c.ComplaintID] = c.Clone()
	s.seqs[c.Seq] = c.ComplaintID
	if c.Seq > s.maxSeq {
		s.maxSeq = c.Seq
	}
	return nil
}

func (s *Store) Get(ctx context.Context, complaintID string) (*models.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.live(complaintID)
	if !ok {
		return nil, fmt.Errorf("complaint %s: %w", complaintID, store.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *Store) List(ctx context.Context, f store.Filter) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}
	f = f.Normalize()

	s.mu.RLock()
	var matched []*models.Complaint
	for _, c := range s.complaints {
		if c.DeletedAt.Valid || !matches(c, f) {
			continue
		}
		matched = append(matched, c)
	}
	sortComplaints(matched, f.SortColumn(), f.Desc)

	page := store.Page{Total: int64(len(matched))}
	for i := f.Skip; i < len(matched) && len(page.Complaints) < f.Limit; i++ {
		page.Complaints = append(page.Complaints, *matched[i].Clone())
	}
	s.mu.RUnlock()
	return page, nil
}

func (s *Store) All(ctx context.Context) ([]models.Complaint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Complaint, 0, len(s.complaints))
	for _, c := range s.complaints {
		if c.DeletedAt.Valid {
			continue
		}
		flat := c.Clone()
		flat.Timeline = nil
		flat.ProgressUpdates = nil
		out = append(out, *flat)
	}
	return out, nil
}

// Save keeps the stored timeline and progress rows and appends the new ones,
// so a caller can never rewrite history through it.
func (s *Store) Save(ctx context.Context, c *models.Complaint, expectedVersion int, entries []models.TimelineEntry, updates []models.ProgressUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.live(c.ComplaintID)
	if !ok {
		return fmt.Errorf("save complaint %s: %w", c.ComplaintID, store.ErrNotFound)
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("save complaint %s at version %d (stored %d): %w", c.ComplaintID, expectedVersion, stored.Version, store.ErrVersionConflict)
	}
	for i, e := range entries {
		if e.Seq != len(stored.Timeline)+i+1 {
			return fmt.Errorf("save complaint %s: entry seq %d already taken: %w", c.ComplaintID, e.Seq, store.ErrVersionConflict)
		}
	}

	next := c.Clone()
	next.ID = stored.ID
	next.CreatedAt = stored.CreatedAt
	next.Citizen = stored.Citizen
	next.Timeline = append(stored.Timeline, cloneEntries(entries)...)
	next.ProgressUpdates = append(stored.ProgressUpdates, cloneUpdates(updates)...)
	next.Version = expectedVersion + 1

	s.complaints[c.ComplaintID] = next
	c.Version = next.Version
	return nil
}

// Delete soft-deletes the complaint. Its identifier stays reserved.
func (s *Store) Delete(ctx context.Context, complaintID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.live(complaintID)
	if !ok {
		return fmt.Errorf("delete complaint %s: %w", complaintID, store.ErrNotFound)
	}
	c.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) live(complaintID string) (*models.Complaint, bool) {
	c, ok := s.complaints[complaintID]
	if !ok || c.DeletedAt.Valid {
		return nil, false
	}
	return c, true
}

func matches(c *models.Complaint, f store.Filter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if f.CitizenEmail != "" && c.Citizen.Email != f.CitizenEmail {
		return false
	}
	if f.TechnicianID != "" && (c.AssignedTo == nil || c.AssignedTo.ID != f.TechnicianID) {
		return false
	}
	return true
}

func sortComplaints(cs []*models.Complaint, column string, desc bool) {
	less := func(a, b *models.Complaint) bool {
		switch column {
		case "updated_at":
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
		case "priority":
			if a.Priority != b.Priority {
				return a.Priority < b.Priority
			}
		case "status":
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.Seq < b.Seq
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if desc {
			return less(cs[j], cs[i])
		}
		return less(cs[i], cs[j])
	})
}

func cloneEntries(entries []models.TimelineEntry) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(entries))
	for i := range entries {
		out[i] = entries[i].Clone()
	}
	return out
}

func cloneUpdates(updates []models.ProgressUpdate) []models.ProgressUpdate {
	out := make([]models.ProgressUpdate, len(updates))
	for i := range updates {
		out[i] = updates[i].Clone()
	}
	return out
}
