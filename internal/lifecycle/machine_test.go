package lifecycle

import (
	"strings"
	"testing"
	"time"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/progress"
	"github.com/complaintdesk/backend/internal/timeline"
)

var (
	t0      = time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	officer = Actor{Name: "Officer X", Role: models.RoleOfficer}
	bob     = AssignRequest{TechnicianID: "TECH-01", TechnicianName: "Bob Tech", AssignedBy: officer}
)

func validInput() CreateInput {
	return CreateInput{
		Category:     "Water",
		Description:  "Pipe burst on Main St",
		Location:     "Gulshan-2",
		CitizenName:  "Jane Roe",
		CitizenEmail: "Jane@Example.com",
	}
}

func mustCreate(t *testing.T, m *Machine) *models.Complaint {
	t.Helper()
	c, err := m.Create(validInput(), t0)
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	c.AssignIdentifier("CMPT-001", 1)
	return c
}

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func TestCreate(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)

	if c.Status != models.StatusNew {
		t.Errorf("expected status new, got %s", c.Status)
	}
	if c.CategoryLabel != "Water Leakage" {
		t.Errorf("expected label Water Leakage, got %q", c.CategoryLabel)
	}
	if c.Priority != models.PriorityNormal {
		t.Errorf("expected default priority normal, got %s", c.Priority)
	}
	if c.Citizen.Email != "jane@example.com" || c.Citizen.Initials != "JR" {
		t.Errorf("unexpected citizen: %+v", c.Citizen)
	}
	if len(c.Timeline) != 1 {
		t.Fatalf("expected 1 timeline entry, got %d", len(c.Timeline))
	}
	first := c.Timeline[0]
	if first.Type != models.EntrySubmitted || first.Actor != "Jane Roe" || first.ActorRole != models.RoleCitizen {
		t.Errorf("unexpected submitted entry: %+v", first)
	}
	if first.ComplaintID != "CMPT-001" {
		t.Errorf("expected identifier on entry, got %q", first.ComplaintID)
	}
}

func TestCreateValidation(t *testing.T) {
	m := New(DefaultOptions())
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"empty description", func(in *CreateInput) { in.Description = "   " }, "description"},
		{"short description", func(in *CreateInput) { in.Description = "leak" }, "description"},
		{"long description", func(in *CreateInput) { in.Description = strings.Repeat("a", 2001) }, "description"},
		{"missing location", func(in *CreateInput) { in.Location = "" }, "location"},
		{"bad email", func(in *CreateInput) { in.CitizenEmail = "jane@example" }, "citizen.email"},
		{"unknown category", func(in *CreateInput) { in.Category = "Noise" }, "category"},
		{"unknown priority", func(in *CreateInput) { in.Priority = "whenever" }, "priority"},
		{"missing name", func(in *CreateInput) { in.CitizenName = "" }, "citizen.name"},
	}

	for _, test := range tests {
		in := validInput()
		test.mutate(&in)
		_, err := m.Create(in, t0)
		verr, ok := err.(*apperr.ValidationError)
		if !ok {
			t.Errorf("%s: expected validation error, got %v", test.name, err)
			continue
		}
		found := false
		for _, f := range verr.Fields {
			if f.Field == test.field {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: expected field %s in %v", test.name, test.field, verr.Fields)
		}
	}
}

func TestCreateReportsEveryField(t *testing.T) {
	m := New(DefaultOptions())
	_, err := m.Create(CreateInput{}, t0)
	verr, ok := err.(*apperr.ValidationError)
	if !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Fields) != 5 {
		t.Errorf("expected 5 field errors, got %v", verr.Fields)
	}
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"Jane Roe":          "JR",
		"jane":              "J",
		"  mary ann smith ": "MA",
		"":                  "NA",
		"élise durand":      "ÉD",
	}
	for in, want := range tests {
		if got := Initials(in); got != want {
			t.Errorf("Initials(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to models.ComplaintStatus
		ok       bool
	}{
		{models.StatusNew, models.StatusAcknowledged, true},
		{models.StatusNew, models.StatusResolved, false},
		{models.StatusNew, models.StatusInProgress, false},
		{models.StatusAcknowledged, models.StatusRejected, true},
		{models.StatusInProgress, models.StatusCompleted, true},
		{models.StatusResolved, models.StatusClosed, true},
		{models.StatusClosed, models.StatusInProgress, true},
		{models.StatusClosed, models.StatusNew, false},
		{models.StatusRejected, models.StatusInProgress, false},
		{models.StatusRejected, models.StatusNew, false},
	}
	for _, test := range tests {
		if got := CanTransition(test.from, test.to); got != test.ok {
			t.Errorf("CanTransition(%s, %s): expected %v, got %v", test.from, test.to, test.ok, got)
		}
	}
	if len(Successors(models.StatusRejected)) != 0 {
		t.Error("rejected must be terminal")
	}
}

func TestTransitionFromRejectedLeavesComplaintUntouched(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)
	if _, err := m.Transition(c, models.StatusRejected, officer, "duplicate", at(1)); err != nil {
		t.Fatalf("reject: %v", err)
	}
	before := c.Clone()

	_, err := m.Transition(c, models.StatusInProgress, officer, "", at(2))
	if !apperr.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	var terr *apperr.InvalidTransitionError
	terr, _ = err.(*apperr.InvalidTransitionError)
	if terr.From != "rejected" || terr.To != "in-progress" {
		t.Errorf("expected from/to in error, got %+v", terr)
	}
	if c.Status != before.Status || len(c.Timeline) != len(before.Timeline) {
		t.Errorf("complaint changed: status %s, %d entries", c.Status, len(c.Timeline))
	}
}

func TestTransitionEntryAndMilestones(t *testing.T) {
	m := New(Options{AssignStatus: models.StatusAssigned})
	c := mustCreate(t, m)

	if _, err := m.Transition(c, models.StatusAcknowledged, officer, "", at(1)); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	ack := c.Timeline[1]
	if ack.Title != "Complaint Acknowledged" || ack.Description != "Status changed from new to acknowledged" {
		t.Errorf("unexpected entry: %+v", ack)
	}

	if _, err := m.Transition(c, models.StatusAssigned, officer, "", at(2)); !apperr.IsInvalidTransition(err) {
		t.Errorf("expected assigned without technician to fail, got %v", err)
	}

	steps := []struct {
		op func() (Result, error)
	}{
		{func() (Result, error) { return m.Assign(c, bob, at(3)) }},
		{func() (Result, error) { return m.Transition(c, models.StatusInProgress, officer, "", at(4)) }},
		{func() (Result, error) { return m.Transition(c, models.StatusResolved, officer, "", at(5)) }},
		{func() (Result, error) { return m.Transition(c, models.StatusClosed, officer, "", at(6)) }},
	}
	for i, step := range steps {
		if _, err := step.op(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if c.WorkStartedAt == nil || !c.WorkStartedAt.Equal(at(4)) {
		t.Errorf("unexpected workStartedAt %v", c.WorkStartedAt)
	}
	if c.ResolvedAt == nil || !c.ResolvedAt.Equal(at(5)) {
		t.Errorf("unexpected resolvedAt %v", c.ResolvedAt)
	}
	if c.ClosedAt == nil || !c.ClosedAt.Equal(at(6)) {
		t.Errorf("unexpected closedAt %v", c.ClosedAt)
	}

	res, err := m.Transition(c, models.StatusInProgress, officer, "", at(7))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if res.Entries[0].Type != models.EntryReopened || res.Entries[0].Title != "Complaint Reopened" {
		t.Errorf("unexpected reopen entry: %+v", res.Entries[0])
	}
	if !c.WorkStartedAt.Equal(at(4)) {
		t.Error("workStartedAt must not be overwritten on reopen")
	}
	if err := timeline.Verify(c.Timeline); err != nil {
		t.Errorf("timeline invalid: %v", err)
	}
}

func TestMilestonesAreMonotonicUnderClockSkew(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)

	if _, err := m.Assign(c, bob, at(10)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// Clock jumps backwards before completion.
	if _, err := m.Complete(c, CompleteRequest{Technician: "Bob Tech"}, at(-30)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := m.Transition(c, models.StatusClosed, officer, "", at(-60)); err != nil {
		t.Fatalf("close: %v", err)
	}

	if c.WorkStartedAt.Before(c.CreatedAt) || c.ResolvedAt.Before(*c.WorkStartedAt) || c.ClosedAt.Before(*c.ResolvedAt) {
		t.Errorf("milestones out of order: created %v started %v resolved %v closed %v",
			c.CreatedAt, c.WorkStartedAt, c.ResolvedAt, c.ClosedAt)
	}
}

func TestSameStateTransition(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)

	res, err := m.Transition(c, models.StatusNew, officer, "", at(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Unchanged || len(c.Timeline) != 1 {
		t.Errorf("expected unchanged no-op, got %+v with %d entries", res, len(c.Timeline))
	}

	res, err = m.Transition(c, models.StatusNew, officer, "Still waiting on a crew", at(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Unchanged || len(res.Entries) != 1 || res.Entries[0].Type != models.EntryComment {
		t.Errorf("expected a comment entry, got %+v", res)
	}
	if c.Status != models.StatusNew {
		t.Errorf("status must stay new, got %s", c.Status)
	}
}

func TestAssignAndReassign(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)

	req := bob
	req.Specialty = "Plumbing"
	res, err := m.Assign(c, req, at(1))
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if c.Status != models.StatusInProgress || c.AssignedTo.ID != "TECH-01" || c.AssignedAt == nil {
		t.Errorf("unexpected complaint after assign: status %s, assignee %+v", c.Status, c.AssignedTo)
	}
	if res.Entries[0].Description != "Assigned to Bob Tech (TECH-01) - Plumbing" {
		t.Errorf("unexpected description %q", res.Entries[0].Description)
	}
	if res.Entries[0].Actor != "Officer X" || res.Entries[0].ActorRole != models.RoleOfficer {
		t.Errorf("unexpected actor on entry: %+v", res.Entries[0])
	}

	res, err = m.Reassign(c, AssignRequest{TechnicianID: "TECH-02", TechnicianName: "Alice Fixer", AssignedBy: officer}, at(2))
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	entry := res.Entries[0]
	if entry.Title != "Task Reassigned" {
		t.Errorf("expected Task Reassigned, got %q", entry.Title)
	}
	if entry.Description != "Reassigned from Bob Tech (TECH-01) to Alice Fixer (TECH-02)" {
		t.Errorf("unexpected description %q", entry.Description)
	}
	if c.Status != models.StatusInProgress || c.ReassignedAt == nil || c.AssignedTo.ID != "TECH-02" {
		t.Errorf("unexpected complaint after reassign: %s %+v", c.Status, c.AssignedTo)
	}
}

func TestAssignRejections(t *testing.T) {
	m := New(DefaultOptions())

	c := mustCreate(t, m)
	if _, err := m.Assign(c, AssignRequest{TechnicianID: "TECH-01"}, at(1)); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for missing name, got %v", err)
	}
	if _, err := m.Reassign(c, bob, at(1)); !apperr.IsInvalidTransition(err) {
		t.Errorf("expected reassign without assignee to fail, got %v", err)
	}

	if _, err := m.Transition(c, models.StatusRejected, officer, "", at(2)); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := m.Assign(c, bob, at(3)); !apperr.IsInvalidTransition(err) {
		t.Errorf("expected assign on rejected complaint to fail, got %v", err)
	}
	if c.AssignedTo != nil {
		t.Error("rejected assign must not set assignee")
	}
}

func TestStartWorkIsIdempotent(t *testing.T) {
	m := New(Options{AssignStatus: models.StatusAssigned})
	c := mustCreate(t, m)
	if _, err := m.Assign(c, bob, at(1)); err != nil {
		t.Fatalf("assign: %v", err)
	}

	res, err := m.StartWork(c, "", at(2))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Entries[0].Description != "Bob Tech has started working on this issue." {
		t.Errorf("unexpected description %q", res.Entries[0].Description)
	}
	started := *c.WorkStartedAt
	entries := len(c.Timeline)

	res, err = m.StartWork(c, "Bob Tech", at(30))
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !res.Unchanged {
		t.Error("second start should be a no-op")
	}
	if !c.WorkStartedAt.Equal(started) || len(c.Timeline) != entries {
		t.Errorf("second start changed the complaint: %v, %d entries", c.WorkStartedAt, len(c.Timeline))
	}

	fresh := mustCreate(t, m)
	if _, err := m.StartWork(fresh, "Bob Tech", at(1)); !apperr.IsInvalidTransition(err) {
		t.Errorf("expected start on new complaint to fail, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)
	if _, err := m.Complete(c, CompleteRequest{Technician: "Bob Tech"}, at(1)); !apperr.IsInvalidTransition(err) {
		t.Errorf("expected complete on new complaint to fail, got %v", err)
	}

	if _, err := m.Assign(c, bob, at(1)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := m.AddProgress(c, progress.Request{Notes: "Found the leak", TimeSpent: 1.5, Technician: "Bob Tech"}, at(2)); err != nil {
		t.Fatalf("progress: %v", err)
	}
	res, err := m.Complete(c, CompleteRequest{Technician: "Bob Tech", Notes: "Replaced the valve", TimeSpent: "0.5"}, at(3))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if c.Status != models.StatusResolved || c.ResolvedAt == nil || c.ResolvedBy != "Bob Tech" {
		t.Errorf("unexpected complaint after complete: %s %v %q", c.Status, c.ResolvedAt, c.ResolvedBy)
	}
	if len(res.Updates) != 1 || !res.Updates[0].IsCompletion {
		t.Errorf("expected one completion update, got %+v", res.Updates)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected a single completion entry, got %d", len(res.Entries))
	}
	want := "Work completed by Bob Tech. Replaced the valve Total time spent: 2 hours."
	if res.Entries[0].Description != want {
		t.Errorf("expected %q, got %q", want, res.Entries[0].Description)
	}
	if c.TotalTimeSpent != progress.Total(c.ProgressUpdates) {
		t.Errorf("total %v does not match updates", c.TotalTimeSpent)
	}
}

func TestOverride(t *testing.T) {
	m := New(DefaultOptions())
	admin := Actor{Name: "Root", Role: models.RoleAdmin}

	c := mustCreate(t, m)
	if _, err := m.Override(c, models.StatusResolved, officer, "cleanup", at(1)); !apperr.IsInvalidTransition(err) {
		t.Errorf("expected non-admin override to fail, got %v", err)
	}
	if _, err := m.Override(c, models.StatusResolved, admin, " ", at(1)); !apperr.IsValidation(err) {
		t.Errorf("expected missing reason to fail, got %v", err)
	}

	res, err := m.Override(c, models.StatusResolved, admin, "fixed by the utility company", at(2))
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if c.Status != models.StatusResolved || c.ResolvedAt == nil {
		t.Errorf("unexpected complaint after override: %s", c.Status)
	}
	if res.Entries[0].Title != "Status Overridden" || !strings.Contains(res.Entries[0].Description, "fixed by the utility company") {
		t.Errorf("unexpected override entry: %+v", res.Entries[0])
	}
}

func TestOverrideKeepsMilestonesOrdered(t *testing.T) {
	admin := Actor{Name: "Root", Role: models.RoleAdmin}

	tests := []struct {
		name   string
		target models.ComplaintStatus
	}{
		{"closed", models.StatusClosed},
		{"resolved", models.StatusResolved},
		{"completed", models.StatusCompleted},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := New(DefaultOptions())
			c := mustCreate(t, m)

			if _, err := m.Override(c, test.target, admin, "duplicate of CMPT-000", at(60)); err != nil {
				t.Fatalf("override: %v", err)
			}
			if c.WorkStartedAt == nil || c.ResolvedAt == nil {
				t.Fatalf("skipped milestones must be filled, got started %v resolved %v", c.WorkStartedAt, c.ResolvedAt)
			}

			if _, err := m.Transition(c, models.StatusInProgress, officer, "", at(120)); err != nil {
				t.Fatalf("reopen: %v", err)
			}
			if !c.WorkStartedAt.Equal(at(60)) {
				t.Errorf("reopen must not move workStartedAt, got %v", c.WorkStartedAt)
			}
			if c.WorkStartedAt.Before(c.CreatedAt) || c.ResolvedAt.Before(*c.WorkStartedAt) {
				t.Errorf("milestones out of order: created %v started %v resolved %v", c.CreatedAt, c.WorkStartedAt, c.ResolvedAt)
			}
			if c.ClosedAt != nil && c.ClosedAt.Before(*c.ResolvedAt) {
				t.Errorf("closedAt %v precedes resolvedAt %v", c.ClosedAt, c.ResolvedAt)
			}
		})
	}
}

func TestCommentAndCorrection(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)

	bad := 9
	if _, err := m.Comment(c, CommentRequest{Description: "typo", RefersTo: &bad}, at(1)); !apperr.IsValidation(err) {
		t.Errorf("expected dangling reference to fail, got %v", err)
	}

	ref := 1
	res, err := m.Comment(c, CommentRequest{Description: "Location is Gulshan-1", RefersTo: &ref, Actor: officer}, at(2))
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	entry := res.Entries[0]
	if entry.Title != "Correction" || entry.RefersTo == nil || *entry.RefersTo != 1 {
		t.Errorf("unexpected correction: %+v", entry)
	}
	if c.Timeline[0].Description != "Received from Citizen Portal" {
		t.Error("the corrected entry must not change")
	}
}

func TestChangePriority(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)

	if _, err := m.ChangePriority(c, "eventually", officer, at(1)); !apperr.IsValidation(err) {
		t.Errorf("expected invalid priority to fail, got %v", err)
	}
	res, err := m.ChangePriority(c, "URGENT", officer, at(2))
	if err != nil {
		t.Fatalf("change priority: %v", err)
	}
	if c.Priority != models.PriorityUrgent || res.Entries[0].Description != "Priority changed from normal to urgent" {
		t.Errorf("unexpected result: %s %+v", c.Priority, res.Entries)
	}
	res, _ = m.ChangePriority(c, "urgent", officer, at(3))
	if !res.Unchanged {
		t.Error("setting the same priority should be a no-op")
	}
}

func TestEndToEndScenario(t *testing.T) {
	m := New(DefaultOptions())
	c := mustCreate(t, m)
	if len(c.Timeline) != 1 {
		t.Fatalf("expected 1 entry after create, got %d", len(c.Timeline))
	}

	if _, err := m.Assign(c, bob, at(1)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if c.Status != models.StatusInProgress || c.AssignedTo.ID != "TECH-01" || len(c.Timeline) != 2 {
		t.Fatalf("after assign: status %s, %d entries", c.Status, len(c.Timeline))
	}

	if _, err := m.AddProgress(c, progress.Request{Notes: "Found the leak", TimeSpent: 1.5, Technician: "Bob Tech"}, at(2)); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if c.TotalTimeSpent != 1.5 || len(c.Timeline) != 3 {
		t.Fatalf("after progress: total %v, %d entries", c.TotalTimeSpent, len(c.Timeline))
	}

	if _, err := m.Complete(c, CompleteRequest{Technician: "Bob Tech"}, at(3)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.Status != models.StatusResolved || c.ResolvedAt == nil || len(c.Timeline) != 4 {
		t.Fatalf("after complete: status %s, %d entries", c.Status, len(c.Timeline))
	}
	if err := timeline.Verify(c.Timeline); err != nil {
		t.Errorf("timeline invalid: %v", err)
	}
}
