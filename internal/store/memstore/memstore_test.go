package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/store"
)

var base = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func seeded(seq int64, status models.ComplaintStatus, email string) *models.Complaint {
	c := &models.Complaint{
		Category:  models.CategoryWater,
		Status:    status,
		Priority:  models.PriorityNormal,
		Citizen:   models.Citizen{Name: "Jane Roe", Email: email},
		CreatedAt: base.Add(time.Duration(seq) * time.Hour),
		Timeline: []models.TimelineEntry{
			{Seq: 1, Type: models.EntrySubmitted, Title: "Complaint Submitted", Actor: "Jane Roe", ActorRole: models.RoleCitizen, Timestamp: base},
		},
	}
	c.AssignIdentifier(fmt.Sprintf("CMPT-%03d", seq), seq)
	return c
}

func TestInsertEnforcesUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Insert(ctx, seeded(1, models.StatusNew, "a@x.io")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, seeded(1, models.StatusNew, "b@x.io")); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("expected duplicate id, got %v", err)
	}

	clash := seeded(2, models.StatusNew, "c@x.io")
	clash.Seq = 1
	if err := s.Insert(ctx, clash); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("expected duplicate seq, got %v", err)
	}

	max, _ := s.MaxSeq(ctx)
	if max != 1 {
		t.Errorf("expected max seq 1, got %d", max)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Insert(ctx, seeded(1, models.StatusNew, "a@x.io"))

	got, err := s.Get(ctx, "CMPT-001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Status = models.StatusClosed
	got.Timeline[0].Actor = "someone"

	again, _ := s.Get(ctx, "CMPT-001")
	if again.Status != models.StatusNew || again.Timeline[0].Actor != "Jane Roe" {
		t.Error("stored complaint was mutated through a returned copy")
	}

	if _, err := s.Get(ctx, "CMPT-404"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSaveChecksVersionAndAppends(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Insert(ctx, seeded(1, models.StatusNew, "a@x.io"))

	first, _ := s.Get(ctx, "CMPT-001")
	second, _ := s.Get(ctx, "CMPT-001")

	entry := models.TimelineEntry{ComplaintID: "CMPT-001", Seq: 2, Type: models.EntryAcknowledged, Title: "Complaint Acknowledged", Timestamp: base.Add(time.Minute)}
	first.Status = models.StatusAcknowledged
	first.Timeline = append(first.Timeline, entry)
	if err := s.Save(ctx, first, 1, []models.TimelineEntry{entry}, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("expected version 2 on caller copy, got %d", first.Version)
	}

	second.Status = models.StatusRejected
	if err := s.Save(ctx, second, 1, nil, nil); !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("expected version conflict, got %v", err)
	}

	stored, _ := s.Get(ctx, "CMPT-001")
	if stored.Status != models.StatusAcknowledged || len(stored.Timeline) != 2 {
		t.Errorf("unexpected stored complaint: %s with %d entries", stored.Status, len(stored.Timeline))
	}
}

func TestSaveRejectsOutOfOrderEntries(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Insert(ctx, seeded(1, models.StatusNew, "a@x.io"))

	c, _ := s.Get(ctx, "CMPT-001")
	err := s.Save(ctx, c, 1, []models.TimelineEntry{{Seq: 1, Type: models.EntryComment}}, nil)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("expected overwrite of entry 1 to fail, got %v", err)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i, status := range []models.ComplaintStatus{models.StatusNew, models.StatusNew, models.StatusResolved, models.StatusNew} {
		c := seeded(int64(i+1), status, "a@x.io")
		if i == 3 {
			c.Citizen.Email = "b@x.io"
			c.AssignedTo = &models.Assignee{ID: "TECH-01", Name: "Bob Tech"}
		}
		_ = s.Insert(ctx, c)
	}

	page, err := s.List(ctx, store.Filter{Status: models.StatusNew, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Complaints) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(page.Complaints), page.Total)
	}
	if page.Complaints[0].ComplaintID != "CMPT-004" {
		t.Errorf("expected newest first, got %s", page.Complaints[0].ComplaintID)
	}

	page, _ = s.List(ctx, store.Filter{Status: models.StatusNew, Limit: 2, Skip: 2})
	if len(page.Complaints) != 1 || page.Complaints[0].ComplaintID != "CMPT-001" {
		t.Errorf("unexpected second page: %+v", page.Complaints)
	}

	page, _ = s.List(ctx, store.Filter{CitizenEmail: "B@X.IO"})
	if page.Total != 1 {
		t.Errorf("expected 1 complaint for b@x.io, got %d", page.Total)
	}

	page, _ = s.List(ctx, store.Filter{TechnicianID: "TECH-01"})
	if page.Total != 1 || page.Complaints[0].AssignedTo.ID != "TECH-01" {
		t.Errorf("unexpected technician listing: %+v", page)
	}

	page, _ = s.List(ctx, store.Filter{Sort: "complaintId"})
	if page.Complaints[0].ComplaintID != "CMPT-001" {
		t.Errorf("expected ascending id order, got %s first", page.Complaints[0].ComplaintID)
	}
}

func TestDeleteIsSoft(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Insert(ctx, seeded(1, models.StatusNew, "a@x.io"))

	if err := s.Delete(ctx, "CMPT-001"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "CMPT-001"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected deleted complaint to be hidden, got %v", err)
	}
	if err := s.Delete(ctx, "CMPT-001"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected second delete to report not found, got %v", err)
	}
	all, _ := s.All(ctx)
	if len(all) != 0 {
		t.Errorf("expected no live complaints, got %d", len(all))
	}

	max, _ := s.MaxSeq(ctx)
	if max != 1 {
		t.Errorf("deleted complaint must keep its sequence reserved, got max %d", max)
	}
	if err := s.Insert(ctx, seeded(1, models.StatusNew, "a@x.io")); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("expected deleted identifier to stay taken, got %v", err)
	}
}

func TestFindTechnician(t *testing.T) {
	s := New()
	s.AddStaff(
		models.User{StaffID: "TECH-01", Name: "Bob Tech", Role: models.RoleTechnician, Active: true},
		models.User{StaffID: "OFF-01", Name: "Officer X", Role: models.RoleOfficer, Active: true},
		models.User{StaffID: "TECH-09", Name: "Gone", Role: models.RoleTechnician},
	)
	ctx := context.Background()

	if u, err := s.FindTechnician(ctx, "TECH-01"); err != nil || u.Name != "Bob Tech" {
		t.Errorf("expected Bob Tech, got %v %v", u, err)
	}
	for _, id := range []string{"OFF-01", "TECH-09", "TECH-77"} {
		if _, err := s.FindTechnician(ctx, id); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("%s: expected not found, got %v", id, err)
		}
	}
}

func TestFindByEmail(t *testing.T) {
	s := New()
	s.AddStaff(
		models.User{StaffID: "ADM-01", Email: "Root@City.gov", Role: models.RoleAdmin, Active: true},
		models.User{StaffID: "OFF-02", Email: "former@city.gov", Role: models.RoleOfficer},
	)
	ctx := context.Background()

	if u, err := s.FindByEmail(ctx, " root@city.gov"); err != nil || u.StaffID != "ADM-01" {
		t.Errorf("expected ADM-01, got %v %v", u, err)
	}
	if _, err := s.FindByEmail(ctx, "former@city.gov"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("inactive staff should not be found, got %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Get(ctx, "CMPT-001"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
