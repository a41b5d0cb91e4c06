package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/progress"
	"github.com/complaintdesk/backend/internal/timeline"
)

const defaultTechnician = "Technician"

// Transition moves c to status to along the transition table.
//
// A target equal to the current status is not an error: with a description it
// is recorded as a comment, without one nothing is appended and the result is
// flagged Unchanged.
func (m *Machine) Transition(c *models.Complaint, to models.ComplaintStatus, actor Actor, description string, now time.Time) (Result, error) {
	cp := mark(c)
	description = strings.TrimSpace(description)

	if !to.Valid() {
		return Result{}, apperr.NewValidationError("status", fmt.Sprintf("unknown status %q", to))
	}

	if to == c.Status {
		if description != "" {
			timeline.Append(c, models.TimelineEntry{
				Type:        models.EntryComment,
				Title:       StatusTitle(to),
				Description: description,
				Actor:       actor.Name,
				ActorRole:   actor.Role,
			}, now)
			c.UpdatedAt = now
		}
		return cp.result(c), nil
	}

	if !CanTransition(c.Status, to) {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(to), "")
	}
	if to == models.StatusAssigned && c.AssignedTo == nil {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(to), "no technician assigned")
	}

	from := c.Status
	if description == "" {
		description = fmt.Sprintf("Status changed from %s to %s", from, to)
	}
	entry := timeline.Append(c, models.TimelineEntry{
		Type:        entryTypeFor(from, to),
		Title:       titleFor(from, to),
		Description: description,
		Actor:       actor.Name,
		ActorRole:   actor.Role,
	}, now)
	c.Status = to
	stampMilestones(c, to, entry.Timestamp)
	c.UpdatedAt = now
	return cp.result(c), nil
}

// AssignRequest names the technician and who is assigning them.
type AssignRequest struct {
	TechnicianID   string
	TechnicianName string
	Specialty      string
	AssignedBy     Actor
}

func (r AssignRequest) validate() error {
	v := &apperr.ValidationError{}
	if strings.TrimSpace(r.TechnicianID) == "" {
		v.Add("technicianId", "is required")
	}
	if strings.TrimSpace(r.TechnicianName) == "" {
		v.Add("technicianName", "is required")
	}
	return v.OrNil()
}

func (r AssignRequest) assignee() *models.Assignee {
	return &models.Assignee{
		ID:        strings.TrimSpace(r.TechnicianID),
		Name:      strings.TrimSpace(r.TechnicianName),
		Specialty: strings.TrimSpace(r.Specialty),
	}
}

// Assign gives c to a technician. A complaint that already has a technician
// working on it is reassigned instead; see Reassign.
func (m *Machine) Assign(c *models.Complaint, req AssignRequest, now time.Time) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if hasActiveAssignee(c) {
		return m.reassign(c, req, now)
	}
	if c.Status != models.StatusNew && c.Status != models.StatusAcknowledged {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(models.StatusAssigned), "complaint cannot be assigned in its current state")
	}

	cp := mark(c)
	tech := req.assignee()
	description := fmt.Sprintf("Assigned to %s (%s)", tech.Name, tech.ID)
	if tech.Specialty != "" {
		description += " - " + tech.Specialty
	}
	entry := timeline.Append(c, models.TimelineEntry{
		Type:        models.EntryAssigned,
		Title:       StatusTitle(models.StatusAssigned),
		Description: description,
		Actor:       req.AssignedBy.Name,
		ActorRole:   req.AssignedBy.Role,
	}, now)

	c.AssignedTo = tech
	c.AssignedAt = timePtr(entry.Timestamp)
	c.Status = m.opts.AssignStatus
	stampMilestones(c, c.Status, entry.Timestamp)
	c.UpdatedAt = now
	return cp.result(c), nil
}

// Reassign hands a complaint from its current technician to another one. The
// status is kept.
func (m *Machine) Reassign(c *models.Complaint, req AssignRequest, now time.Time) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if !hasActiveAssignee(c) {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(models.StatusAssigned), "no technician to reassign from")
	}
	return m.reassign(c, req, now)
}

func (m *Machine) reassign(c *models.Complaint, req AssignRequest, now time.Time) (Result, error) {
	cp := mark(c)
	next := req.assignee()
	prev := c.AssignedTo
	if prev.ID == next.ID {
		return cp.result(c), nil
	}

	entry := timeline.Append(c, models.TimelineEntry{
		Type:        models.EntryAssigned,
		Title:       "Task Reassigned",
		Description: fmt.Sprintf("Reassigned from %s (%s) to %s (%s)", prev.Name, prev.ID, next.Name, next.ID),
		Actor:       req.AssignedBy.Name,
		ActorRole:   req.AssignedBy.Role,
	}, now)

	c.AssignedTo = next
	c.ReassignedAt = timePtr(entry.Timestamp)
	c.UpdatedAt = now
	return cp.result(c), nil
}

func hasActiveAssignee(c *models.Complaint) bool {
	if c.AssignedTo == nil {
		return false
	}
	return c.Status == models.StatusAssigned || c.Status == models.StatusInProgress
}

// StartWork moves an assigned complaint to in-progress. Calling it again once
// work has started is a no-op.
func (m *Machine) StartWork(c *models.Complaint, technician string, now time.Time) (Result, error) {
	cp := mark(c)
	if c.Status == models.StatusInProgress {
		return cp.result(c), nil
	}
	if c.Status != models.StatusAssigned {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(models.StatusInProgress), "work can only start on an assigned complaint")
	}

	technician = technicianName(c, technician)
	entry := timeline.Append(c, models.TimelineEntry{
		Type:        models.EntryInProgress,
		Title:       "Work Started",
		Description: fmt.Sprintf("%s has started working on this issue.", technician),
		Actor:       technician,
		ActorRole:   models.RoleTechnician,
	}, now)
	c.Status = models.StatusInProgress
	stampMilestones(c, c.Status, entry.Timestamp)
	c.UpdatedAt = now
	return cp.result(c), nil
}

// AddProgress logs technician work. See progress.Add.
func (m *Machine) AddProgress(c *models.Complaint, req progress.Request, now time.Time) (Result, error) {
	cp := mark(c)
	if _, _, err := progress.Add(c, req, m.progressOptions(), now); err != nil {
		return Result{}, err
	}
	return cp.result(c), nil
}

// CompleteRequest closes out the technician's work. Notes and TimeSpent are
// optional; either one records a final progress update.
type CompleteRequest struct {
	Technician string
	Notes      string
	TimeSpent  any
	Photos     []string
}

// Complete marks an in-progress complaint resolved.
func (m *Machine) Complete(c *models.Complaint, req CompleteRequest, now time.Time) (Result, error) {
	if c.Status != models.StatusInProgress {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(models.StatusResolved), "only work in progress can be completed")
	}
	notes := strings.TrimSpace(req.Notes)
	hours, ok := progress.ParseHours(req.TimeSpent)
	if !ok && m.opts.StrictHours {
		return Result{}, apperr.NewValidationError("timeSpent", "must be a non-negative number of hours")
	}

	cp := mark(c)
	technician := technicianName(c, req.Technician)

	if notes != "" || hours > 0 {
		finalNotes := notes
		if finalNotes == "" {
			finalNotes = "Task completed"
		}
		update := models.ProgressUpdate{
			Notes:        finalNotes,
			TimeSpent:    hours,
			Technician:   technician,
			IsCompletion: true,
		}
		for _, p := range req.Photos {
			if p = strings.TrimSpace(p); p != "" {
				update.Photos = append(update.Photos, p)
			}
		}
		progress.Append(c, update, now)
	}

	summary := notes
	if summary == "" {
		summary = "Issue has been resolved successfully."
	}
	description := fmt.Sprintf("Work completed by %s. %s", technician, summary)
	if c.TotalTimeSpent > 0 {
		description += fmt.Sprintf(" Total time spent: %s hours.", progress.FormatHours(c.TotalTimeSpent))
	}

	entry := timeline.Append(c, models.TimelineEntry{
		Type:        models.EntryResolved,
		Title:       "Task Completed",
		Description: description,
		Actor:       technician,
		ActorRole:   models.RoleTechnician,
	}, now)
	c.Status = models.StatusResolved
	c.ResolvedBy = technician
	stampMilestones(c, c.Status, entry.Timestamp)
	c.UpdatedAt = now
	return cp.result(c), nil
}

func technicianName(c *models.Complaint, given string) string {
	if given = strings.TrimSpace(given); given != "" {
		return given
	}
	if c.AssignedTo != nil && c.AssignedTo.Name != "" {
		return c.AssignedTo.Name
	}
	return defaultTechnician
}

// Override sets any known status regardless of the transition table. It is
// reserved for administrators and always records the reason.
func (m *Machine) Override(c *models.Complaint, to models.ComplaintStatus, actor Actor, reason string, now time.Time) (Result, error) {
	reason = strings.TrimSpace(reason)
	v := &apperr.ValidationError{}
	if !to.Valid() {
		v.Add("status", fmt.Sprintf("unknown status %q", to))
	}
	if reason == "" {
		v.Add("reason", "is required for an override")
	}
	if err := v.OrNil(); err != nil {
		return Result{}, err
	}
	if actor.Role != models.RoleAdmin {
		return Result{}, apperr.NewInvalidTransitionError(string(c.Status), string(to), "override requires the admin role")
	}

	cp := mark(c)
	from := c.Status
	entry := timeline.Append(c, models.TimelineEntry{
		Type:        entryTypeFor(from, to),
		Title:       "Status Overridden",
		Description: fmt.Sprintf("Status overridden from %s to %s: %s", from, to, reason),
		Actor:       actor.Name,
		ActorRole:   actor.Role,
	}, now)
	c.Status = to
	stampMilestones(c, to, entry.Timestamp)
	c.UpdatedAt = now
	return cp.result(c), nil
}

// CommentRequest is a free-form note, optionally correcting an earlier entry.
type CommentRequest struct {
	Title       string
	Description string
	RefersTo    *int
	Actor       Actor
}

// Comment appends a comment entry. Corrections reference the entry they amend
// by seq; the referenced entry itself is never touched.
func (m *Machine) Comment(c *models.Complaint, req CommentRequest, now time.Time) (Result, error) {
	description := strings.TrimSpace(req.Description)
	v := &apperr.ValidationError{}
	if description == "" {
		v.Add("description", "is required")
	}
	if req.RefersTo != nil {
		if _, ok := timeline.Find(c, *req.RefersTo); !ok {
			v.Add("refersTo", fmt.Sprintf("entry %d does not exist", *req.RefersTo))
		}
	}
	if err := v.OrNil(); err != nil {
		return Result{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Comment"
		if req.RefersTo != nil {
			title = "Correction"
		}
	}

	cp := mark(c)
	entry := models.TimelineEntry{
		Type:        models.EntryComment,
		Title:       title,
		Description: description,
		Actor:       req.Actor.Name,
		ActorRole:   req.Actor.Role,
	}
	if req.RefersTo != nil {
		ref := *req.RefersTo
		entry.RefersTo = &ref
	}
	timeline.Append(c, entry, now)
	c.UpdatedAt = now
	return cp.result(c), nil
}

// ChangePriority sets a new priority and notes the change on the timeline.
func (m *Machine) ChangePriority(c *models.Complaint, priority string, actor Actor, now time.Time) (Result, error) {
	p := models.ComplaintPriority(strings.ToLower(strings.TrimSpace(priority)))
	if !p.Valid() {
		return Result{}, apperr.NewValidationError("priority", "must be one of low, normal, medium, high, urgent")
	}
	cp := mark(c)
	if p == c.Priority {
		return cp.result(c), nil
	}
	timeline.Append(c, models.TimelineEntry{
		Type:        models.EntryComment,
		Title:       "Priority Changed",
		Description: fmt.Sprintf("Priority changed from %s to %s", c.Priority, p),
		Actor:       actor.Name,
		ActorRole:   actor.Role,
	}, now)
	c.Priority = p
	c.UpdatedAt = now
	return cp.result(c), nil
}
