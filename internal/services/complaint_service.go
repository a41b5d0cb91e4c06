package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/config"
	"github.com/complaintdesk/backend/internal/idgen"
	"github.com/complaintdesk/backend/internal/lifecycle"
	"github.com/complaintdesk/backend/internal/logger"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/notify"
	"github.com/complaintdesk/backend/internal/progress"
	"github.com/complaintdesk/backend/internal/stats"
	"github.com/complaintdesk/backend/internal/store"
	"github.com/complaintdesk/backend/internal/timeline"
)

// Options configures the complaint service
type Options struct {
	StoreTimeout    time.Duration
	ConflictRetries int
	Lifecycle       lifecycle.Options
	IDs             idgen.Config
}

// OptionsFromConfig maps environment configuration onto service options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StoreTimeout:    cfg.StoreTimeout,
		ConflictRetries: cfg.ConflictRetries,
		Lifecycle: lifecycle.Options{
			AssignStatus:   models.ComplaintStatus(cfg.AssignStatus),
			DescriptionMin: cfg.DescriptionMin,
			DescriptionMax: cfg.DescriptionMax,
			StrictHours:    cfg.StrictHours,
		},
		IDs: idgen.Config{
			Prefix:      cfg.IDPrefix,
			Floor:       cfg.IDFloor,
			MaxAttempts: cfg.IDMaxAttempts,
			BackoffBase: cfg.IDBackoffBase,
		},
	}
}

// ComplaintService runs every complaint intent as load, apply, atomic save,
// notify. Writes to one complaint are serialized by the store's version check;
// a lost race reloads and re-applies the intent.
type ComplaintService struct {
	repo     store.Repository
	staff    store.StaffDirectory
	notifier notify.Notifier
	machine  *lifecycle.Machine
	ids      *idgen.Generator
	opts     Options
	now      func() time.Time
}

// NewComplaintService creates a new complaint service. staff may be nil, in
// which case technicians are not checked against the directory.
func NewComplaintService(repo store.Repository, staff store.StaffDirectory, notifier notify.Notifier, opts Options) *ComplaintService {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.ConflictRetries <= 0 {
		opts.ConflictRetries = 3
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	cs := &ComplaintService{
		repo:     repo,
		staff:    staff,
		notifier: notifier,
		machine:  lifecycle.New(opts.Lifecycle),
		opts:     opts,
		now:      time.Now,
	}
	cs.ids = idgen.New(timedSequence{cs}, opts.IDs)
	return cs
}

// SetClock replaces the time source
func (cs *ComplaintService) SetClock(now func() time.Time) {
	cs.now = now
}

// Create files a new complaint and allocates its identifier
func (cs *ComplaintService) Create(ctx context.Context, in lifecycle.CreateInput) (*models.Complaint, error) {
	c, err := cs.machine.Create(in, cs.now())
	if err != nil {
		return nil, err
	}

	id, err := cs.ids.Allocate(ctx, func(ctx context.Context, id string, seq int64) error {
		c.AssignIdentifier(id, seq)
		return cs.timed(ctx, "insert", func(ctx context.Context) error {
			return cs.repo.Insert(ctx, c)
		})
	})
	if err != nil {
		logger.WithError(err, "complaint_service").Error("Failed to create complaint")
		return nil, err
	}

	logger.WithComplaint(id, "create").WithFields(map[string]interface{}{
		"category": c.Category,
		"priority": c.Priority,
	}).Info("Complaint created")

	cs.notifier.Notify(notify.Event{
		Type:         notify.EventNewComplaint,
		ComplaintID:  id,
		Status:       string(c.Status),
		Actor:        c.Citizen.Name,
		ActorRole:    string(models.RoleCitizen),
		CitizenEmail: c.Citizen.Email,
		Message:      c.CategoryLabel + " at " + c.Location,
		Timestamp:    c.CreatedAt,
	})
	return c, nil
}

// Get returns one complaint with its timeline and progress updates
func (cs *ComplaintService) Get(ctx context.Context, complaintID string) (*models.Complaint, error) {
	return cs.load(ctx, complaintID)
}

// List returns a filtered page of complaints
func (cs *ComplaintService) List(ctx context.Context, f store.Filter) (store.Page, error) {
	var page store.Page
	err := cs.timed(ctx, "list", func(ctx context.Context) error {
		var err error
		page, err = cs.repo.List(ctx, f)
		return err
	})
	return page, err
}

// Timeline returns the complaint's audit log, oldest first unless newestFirst
func (cs *ComplaintService) Timeline(ctx context.Context, complaintID string, newestFirst bool) ([]models.TimelineEntry, error) {
	c, err := cs.load(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	entries := timeline.Entries(c)
	if newestFirst {
		entries = timeline.NewestFirst(entries)
	}
	return entries, nil
}

// ProgressUpdates returns the work log of a complaint
func (cs *ComplaintService) ProgressUpdates(ctx context.Context, complaintID string) ([]models.ProgressUpdate, float64, error) {
	c, err := cs.load(ctx, complaintID)
	if err != nil {
		return nil, 0, err
	}
	return c.ProgressUpdates, c.TotalTimeSpent, nil
}

// Stats recomputes statistics from a full scan
func (cs *ComplaintService) Stats(ctx context.Context) (stats.ComplaintStats, error) {
	complaints, err := cs.all(ctx)
	if err != nil {
		return stats.ComplaintStats{}, err
	}
	return stats.Compute(complaints, cs.now()), nil
}

// TechnicianStats summarises one technician's workload
func (cs *ComplaintService) TechnicianStats(ctx context.Context, technicianID string) (stats.TechnicianStats, error) {
	if _, err := cs.findTechnician(ctx, technicianID); err != nil {
		return stats.TechnicianStats{}, err
	}
	complaints, err := cs.all(ctx)
	if err != nil {
		return stats.TechnicianStats{}, err
	}
	return stats.ComputeTechnician(technicianID, complaints), nil
}

// TransitionRequest asks for a status change
type TransitionRequest struct {
	Status      string
	Actor       lifecycle.Actor
	Description string
}

// Transition moves a complaint along the transition table
func (cs *ComplaintService) Transition(ctx context.Context, complaintID string, req TransitionRequest) (*models.Complaint, error) {
	to := parseStatus(req.Status)
	c, res, err := cs.mutate(ctx, complaintID, "transition", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.Transition(c, to, req.Actor, req.Description, now)
	})
	if err != nil {
		return nil, err
	}
	if res.StatusChanged() {
		cs.emit(notify.EventStatusChanged, c, res, req.Actor, "")
	} else if !res.Unchanged {
		cs.emit(notify.EventCommentAdded, c, res, req.Actor, "")
	}
	return c, nil
}

// Assign gives a complaint to a technician, or reassigns it when someone is
// already working on it
func (cs *ComplaintService) Assign(ctx context.Context, complaintID string, req lifecycle.AssignRequest) (*models.Complaint, error) {
	return cs.assign(ctx, complaintID, req, false)
}

// Reassign hands a complaint to a different technician
func (cs *ComplaintService) Reassign(ctx context.Context, complaintID string, req lifecycle.AssignRequest) (*models.Complaint, error) {
	return cs.assign(ctx, complaintID, req, true)
}

func (cs *ComplaintService) assign(ctx context.Context, complaintID string, req lifecycle.AssignRequest, explicit bool) (*models.Complaint, error) {
	if id := strings.TrimSpace(req.TechnicianID); id != "" {
		tech, err := cs.findTechnician(ctx, id)
		if err != nil {
			return nil, err
		}
		if tech != nil {
			if strings.TrimSpace(req.TechnicianName) == "" {
				req.TechnicianName = tech.Name
			}
			if strings.TrimSpace(req.Specialty) == "" {
				req.Specialty = tech.Specialty
			}
		}
	}

	var reassigned bool
	c, res, err := cs.mutate(ctx, complaintID, "assign", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		reassigned = c.AssignedTo != nil && (c.Status == models.StatusAssigned || c.Status == models.StatusInProgress)
		if explicit {
			return cs.machine.Reassign(c, req, now)
		}
		return cs.machine.Assign(c, req, now)
	})
	if err != nil {
		return nil, err
	}
	if res.Unchanged {
		return c, nil
	}

	eventType := notify.EventTaskAssigned
	if reassigned {
		eventType = notify.EventTaskReassigned
	}
	cs.emit(eventType, c, res, req.AssignedBy, assigneeID(c))
	return c, nil
}

// StartWork marks an assigned complaint as in progress
func (cs *ComplaintService) StartWork(ctx context.Context, complaintID, technician string) (*models.Complaint, error) {
	c, res, err := cs.mutate(ctx, complaintID, "start", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.StartWork(c, technician, now)
	})
	if err != nil {
		return nil, err
	}
	if !res.Unchanged {
		cs.emit(notify.EventTaskStarted, c, res, technicianActor(technician), assigneeID(c))
	}
	return c, nil
}

// AddProgress records technician work against a complaint
func (cs *ComplaintService) AddProgress(ctx context.Context, complaintID string, req progress.Request) (*models.Complaint, error) {
	c, res, err := cs.mutate(ctx, complaintID, "progress", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.AddProgress(c, req, now)
	})
	if err != nil {
		return nil, err
	}
	cs.emit(notify.EventProgressUpdate, c, res, technicianActor(req.Technician), assigneeID(c))
	return c, nil
}

// Complete resolves an in-progress complaint
func (cs *ComplaintService) Complete(ctx context.Context, complaintID string, req lifecycle.CompleteRequest) (*models.Complaint, error) {
	c, res, err := cs.mutate(ctx, complaintID, "complete", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.Complete(c, req, now)
	})
	if err != nil {
		return nil, err
	}
	cs.emit(notify.EventTaskCompleted, c, res, technicianActor(c.ResolvedBy), assigneeID(c))
	return c, nil
}

// Override sets a status outside the transition table. Admin only.
func (cs *ComplaintService) Override(ctx context.Context, complaintID string, req TransitionRequest) (*models.Complaint, error) {
	to := parseStatus(req.Status)
	c, res, err := cs.mutate(ctx, complaintID, "override", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.Override(c, to, req.Actor, req.Description, now)
	})
	if err != nil {
		return nil, err
	}
	logger.WithActor(req.Actor.Name, string(req.Actor.Role)).WithFields(map[string]interface{}{
		"complaint_id": complaintID,
		"from":         res.From,
		"to":           res.To,
	}).Warn("Complaint status overridden")
	cs.emit(notify.EventStatusChanged, c, res, req.Actor, "")
	return c, nil
}

// Comment appends a comment or correction to the timeline
func (cs *ComplaintService) Comment(ctx context.Context, complaintID string, req lifecycle.CommentRequest) (*models.Complaint, error) {
	c, res, err := cs.mutate(ctx, complaintID, "comment", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.Comment(c, req, now)
	})
	if err != nil {
		return nil, err
	}
	cs.emit(notify.EventCommentAdded, c, res, req.Actor, "")
	return c, nil
}

// ChangePriority updates the complaint priority
func (cs *ComplaintService) ChangePriority(ctx context.Context, complaintID, priority string, actor lifecycle.Actor) (*models.Complaint, error) {
	c, res, err := cs.mutate(ctx, complaintID, "priority", func(c *models.Complaint, now time.Time) (lifecycle.Result, error) {
		return cs.machine.ChangePriority(c, priority, actor, now)
	})
	if err != nil {
		return nil, err
	}
	if !res.Unchanged {
		cs.emit(notify.EventCommentAdded, c, res, actor, "")
	}
	return c, nil
}

// Delete removes a complaint from listings. Its audit rows are kept.
func (cs *ComplaintService) Delete(ctx context.Context, complaintID string, actor lifecycle.Actor) error {
	err := cs.timed(ctx, "delete", func(ctx context.Context) error {
		return cs.repo.Delete(ctx, complaintID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NewNotFoundError("complaint", complaintID)
	}
	if err != nil {
		return err
	}

	logger.WithComplaint(complaintID, "delete").WithFields(map[string]interface{}{
		"actor":      actor.Name,
		"actor_role": actor.Role,
	}).Warn("Complaint deleted")
	cs.notifier.Notify(notify.Event{
		Type:        notify.EventComplaintDeleted,
		ComplaintID: complaintID,
		Actor:       actor.Name,
		ActorRole:   string(actor.Role),
		Timestamp:   cs.now(),
	})
	return nil
}

// Ping checks the store
func (cs *ComplaintService) Ping(ctx context.Context) error {
	return cs.timed(ctx, "ping", cs.repo.Ping)
}

// mutate runs apply against a fresh copy of the complaint and saves the result
// with a version check, retrying from the load on a lost race.
func (cs *ComplaintService) mutate(ctx context.Context, complaintID, op string, apply func(*models.Complaint, time.Time) (lifecycle.Result, error)) (*models.Complaint, lifecycle.Result, error) {
	for attempt := 1; ; attempt++ {
		c, err := cs.load(ctx, complaintID)
		if err != nil {
			return nil, lifecycle.Result{}, err
		}
		expected := c.Version

		res, err := apply(c, cs.now())
		if err != nil {
			return nil, lifecycle.Result{}, err
		}
		if res.Unchanged {
			return c, res, nil
		}

		err = cs.timed(ctx, op, func(ctx context.Context) error {
			return cs.repo.Save(ctx, c, expected, res.Entries, res.Updates)
		})
		switch {
		case err == nil:
			logger.WithComplaint(complaintID, op).WithFields(map[string]interface{}{
				"from":    res.From,
				"to":      res.To,
				"entries": len(res.Entries),
			}).Debug("Complaint updated")
			return c, res, nil
		case errors.Is(err, store.ErrVersionConflict):
			if attempt >= cs.opts.ConflictRetries {
				logger.WithComplaint(complaintID, op).Warn("Giving up after repeated concurrent modifications")
				return nil, lifecycle.Result{}, &apperr.ConcurrentModificationError{ComplaintID: complaintID, Attempts: attempt}
			}
			logger.WithComplaint(complaintID, op).Debug("Concurrent modification, retrying")
		case errors.Is(err, store.ErrNotFound):
			return nil, lifecycle.Result{}, apperr.NewNotFoundError("complaint", complaintID)
		default:
			logger.WithError(err, "complaint_service").WithField("complaint_id", complaintID).Error("Failed to save complaint")
			return nil, lifecycle.Result{}, err
		}
	}
}

func (cs *ComplaintService) load(ctx context.Context, complaintID string) (*models.Complaint, error) {
	var c *models.Complaint
	err := cs.timed(ctx, "load", func(ctx context.Context) error {
		var err error
		c, err = cs.repo.Get(ctx, complaintID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NewNotFoundError("complaint", complaintID)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (cs *ComplaintService) all(ctx context.Context) ([]models.Complaint, error) {
	var complaints []models.Complaint
	err := cs.timed(ctx, "scan", func(ctx context.Context) error {
		var err error
		complaints, err = cs.repo.All(ctx)
		return err
	})
	return complaints, err
}

func (cs *ComplaintService) findTechnician(ctx context.Context, technicianID string) (*models.User, error) {
	if cs.staff == nil {
		return nil, nil
	}
	var tech *models.User
	err := cs.timed(ctx, "find technician", func(ctx context.Context) error {
		var err error
		tech, err = cs.staff.FindTechnician(ctx, technicianID)
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NewNotFoundError("technician", technicianID)
	}
	return tech, err
}

// timed runs fn under the store timeout and classifies infrastructure
// failures as StoreUnavailable. Contract errors from the store pass through.
func (cs *ComplaintService) timed(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, cs.opts.StoreTimeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrDuplicateID),
		errors.Is(err, store.ErrVersionConflict):
		return err
	case apperr.KindOf(err) != apperr.KindInternal:
		return err
	default:
		return apperr.NewStoreUnavailableError(op, err)
	}
}

func (cs *ComplaintService) emit(t notify.EventType, c *models.Complaint, res lifecycle.Result, actor lifecycle.Actor, technicianID string) {
	ev := notify.Event{
		Type:         t,
		ComplaintID:  c.ComplaintID,
		Status:       string(res.To),
		Actor:        actor.Name,
		ActorRole:    string(actor.Role),
		TechnicianID: technicianID,
		CitizenEmail: c.Citizen.Email,
		Timestamp:    c.UpdatedAt,
	}
	if res.StatusChanged() {
		ev.PreviousStatus = string(res.From)
	}
	if n := len(res.Entries); n > 0 {
		ev.Message = res.Entries[n-1].Description
	}
	cs.notifier.Notify(ev)
}

// timedSequence gives the identifier generator a store-timeout-bound view of
// the highest issued sequence number.
type timedSequence struct {
	cs *ComplaintService
}

func (t timedSequence) MaxSeq(ctx context.Context) (int64, error) {
	var highest int64
	err := t.cs.timed(ctx, "max sequence", func(ctx context.Context) error {
		var err error
		highest, err = t.cs.repo.MaxSeq(ctx)
		return err
	})
	return highest, err
}

func parseStatus(s string) models.ComplaintStatus {
	return models.ComplaintStatus(strings.ToLower(strings.TrimSpace(s)))
}

func technicianActor(name string) lifecycle.Actor {
	return lifecycle.Actor{Name: name, Role: models.RoleTechnician}
}

func assigneeID(c *models.Complaint) string {
	if c.AssignedTo == nil {
		return ""
	}
	return c.AssignedTo.ID
}
