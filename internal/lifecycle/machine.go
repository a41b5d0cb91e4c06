// Package lifecycle applies complaint intents (create, transition, assign,
// start, complete, override, comment) to an in-memory complaint.
//
// Every operation validates completely before touching the complaint, so a
// returned error always means nothing changed. Persisting the result is the
// caller's job; the Result lists exactly which timeline and progress rows are
// new.
package lifecycle

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/progress"
	"github.com/complaintdesk/backend/internal/timeline"
)

const (
	DefaultDescriptionMin = 10
	DefaultDescriptionMax = 2000
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Options holds the policy knobs of the state machine.
type Options struct {
	// AssignStatus is the status a fresh assignment moves to: assigned or in-progress.
	AssignStatus   models.ComplaintStatus
	DescriptionMin int
	DescriptionMax int
	StrictHours    bool
}

func DefaultOptions() Options {
	return Options{
		AssignStatus:   models.StatusInProgress,
		DescriptionMin: DefaultDescriptionMin,
		DescriptionMax: DefaultDescriptionMax,
	}
}

// Actor is the identity credited on a timeline entry.
type Actor struct {
	Name string
	Role models.ActorRole
}

// Result describes what an operation did to the complaint.
type Result struct {
	From      models.ComplaintStatus
	To        models.ComplaintStatus
	Entries   []models.TimelineEntry
	Updates   []models.ProgressUpdate
	Unchanged bool
}

// StatusChanged reports whether the operation moved the complaint.
func (r Result) StatusChanged() bool {
	return r.From != r.To
}

type Machine struct {
	opts Options
}

func New(opts Options) *Machine {
	def := DefaultOptions()
	if opts.AssignStatus != models.StatusAssigned && opts.AssignStatus != models.StatusInProgress {
		opts.AssignStatus = def.AssignStatus
	}
	if opts.DescriptionMin <= 0 {
		opts.DescriptionMin = def.DescriptionMin
	}
	if opts.DescriptionMax <= 0 {
		opts.DescriptionMax = def.DescriptionMax
	}
	return &Machine{opts: opts}
}

func (m *Machine) Options() Options {
	return m.opts
}

// CreateInput is the citizen's filing.
type CreateInput struct {
	Category     string
	Description  string
	Location     string
	Priority     string
	CitizenName  string
	CitizenEmail string
	CitizenPhone string
}

// Create validates a filing and builds a new complaint with its submitted
// entry. The identifier is attached later by the caller.
func (m *Machine) Create(in CreateInput, now time.Time) (*models.Complaint, error) {
	v := &apperr.ValidationError{}

	category := models.ComplaintCategory(strings.TrimSpace(in.Category))
	if category == "" {
		v.Add("category", "is required")
	} else if !category.Valid() {
		v.Add("category", fmt.Sprintf("must be one of %s", joinCategories()))
	}

	description := strings.TrimSpace(in.Description)
	switch n := utf8.RuneCountInString(description); {
	case n == 0:
		v.Add("description", "is required")
	case n < m.opts.DescriptionMin:
		v.Add("description", fmt.Sprintf("must be at least %d characters", m.opts.DescriptionMin))
	case n > m.opts.DescriptionMax:
		v.Add("description", fmt.Sprintf("must be at most %d characters", m.opts.DescriptionMax))
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		v.Add("location", "is required")
	}

	priority := models.PriorityNormal
	if p := strings.TrimSpace(in.Priority); p != "" {
		priority = models.ComplaintPriority(strings.ToLower(p))
		if !priority.Valid() {
			v.Add("priority", "must be one of low, normal, medium, high, urgent")
		}
	}

	name := strings.TrimSpace(in.CitizenName)
	if name == "" {
		v.Add("citizen.name", "is required")
	}
	email := strings.ToLower(strings.TrimSpace(in.CitizenEmail))
	if email == "" {
		v.Add("citizen.email", "is required")
	} else if !emailPattern.MatchString(email) {
		v.Add("citizen.email", "is not a valid email address")
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}

	c := &models.Complaint{
		Category:      category,
		CategoryLabel: category.Label(),
		Description:   description,
		Location:      location,
		Status:        models.StatusNew,
		Priority:      priority,
		Citizen: models.Citizen{
			Name:     name,
			Email:    email,
			Phone:    strings.TrimSpace(in.CitizenPhone),
			Initials: Initials(name),
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	timeline.Append(c, models.TimelineEntry{
		Type:        models.EntrySubmitted,
		Title:       "Complaint Submitted",
		Description: "Received from Citizen Portal",
		Actor:       name,
		ActorRole:   models.RoleCitizen,
	}, now)
	return c, nil
}

// Initials returns the upper-cased first letters of the first two words of
// name, or "NA" when there are none.
func Initials(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "NA"
	}
	if len(words) > 2 {
		words = words[:2]
	}
	var b strings.Builder
	for _, word := range words {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func joinCategories() string {
	names := make([]string, len(models.AllCategories))
	for i, c := range models.AllCategories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// checkpoint remembers how long the append-only sequences were before an
// operation so the Result can report only what was added.
type checkpoint struct {
	from    models.ComplaintStatus
	entries int
	updates int
}

func mark(c *models.Complaint) checkpoint {
	return checkpoint{from: c.Status, entries: len(c.Timeline), updates: len(c.ProgressUpdates)}
}

func (cp checkpoint) result(c *models.Complaint) Result {
	r := Result{
		From:    cp.from,
		To:      c.Status,
		Entries: timeline.Since(c, cp.entries),
	}
	for _, u := range c.ProgressUpdates[cp.updates:] {
		r.Updates = append(r.Updates, u.Clone())
	}
	r.Unchanged = len(r.Entries) == 0 && len(r.Updates) == 0 && r.From == r.To
	return r
}

func (m *Machine) progressOptions() progress.Options {
	return progress.Options{StrictHours: m.opts.StrictHours}
}

// stampMilestones sets the first-time timestamps for entering status s. at is
// the timestamp of the entry recording the move, which the ledger keeps
// ordered, so milestones never precede earlier history. Entering a later
// stage also fills any earlier milestone that was skipped, keeping
// workStartedAt <= resolvedAt <= closedAt.
func stampMilestones(c *models.Complaint, s models.ComplaintStatus, at time.Time) {
	if at.Before(c.CreatedAt) {
		at = c.CreatedAt
	}
	switch s {
	case models.StatusClosed:
		if c.ClosedAt == nil {
			c.ClosedAt = timePtr(at)
		}
		fallthrough
	case models.StatusResolved, models.StatusCompleted:
		if c.ResolvedAt == nil {
			c.ResolvedAt = timePtr(at)
		}
		fallthrough
	case models.StatusInProgress:
		if c.WorkStartedAt == nil {
			c.WorkStartedAt = timePtr(at)
		}
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
