package lifecycle

import (
	"github.com/complaintdesk/backend/internal/models"
)

// transitions is the single authority on which status may follow which.
// Rejected has no successors.
var transitions = map[models.ComplaintStatus][]models.ComplaintStatus{
	models.StatusNew:          {models.StatusAcknowledged, models.StatusAssigned, models.StatusRejected},
	models.StatusAcknowledged: {models.StatusAssigned, models.StatusRejected},
	models.StatusAssigned:     {models.StatusInProgress, models.StatusRejected},
	models.StatusInProgress:   {models.StatusResolved, models.StatusCompleted, models.StatusRejected},
	models.StatusResolved:     {models.StatusClosed, models.StatusInProgress},
	models.StatusCompleted:    {models.StatusClosed, models.StatusInProgress},
	models.StatusClosed:       {models.StatusInProgress},
}

var statusTitles = map[models.ComplaintStatus]string{
	models.StatusNew:          "Complaint Submitted",
	models.StatusAcknowledged: "Complaint Acknowledged",
	models.StatusAssigned:     "Assigned to Technician",
	models.StatusInProgress:   "Work In Progress",
	models.StatusResolved:     "Issue Resolved",
	models.StatusCompleted:    "Task Completed",
	models.StatusRejected:     "Complaint Rejected",
	models.StatusClosed:       "Complaint Closed",
}

var statusEntryTypes = map[models.ComplaintStatus]models.EntryType{
	models.StatusNew:          models.EntrySubmitted,
	models.StatusAcknowledged: models.EntryAcknowledged,
	models.StatusAssigned:     models.EntryAssigned,
	models.StatusInProgress:   models.EntryInProgress,
	models.StatusResolved:     models.EntryResolved,
	models.StatusCompleted:    models.EntryCompleted,
	models.StatusRejected:     models.EntryRejected,
	models.StatusClosed:       models.EntryClosed,
}

// CanTransition reports whether the table allows moving from one status to another.
func CanTransition(from, to models.ComplaintStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Successors returns the statuses reachable in one step from s.
func Successors(s models.ComplaintStatus) []models.ComplaintStatus {
	next := transitions[s]
	out := make([]models.ComplaintStatus, len(next))
	copy(out, next)
	return out
}

// IsReopen reports whether the move takes a finished complaint back to work.
func IsReopen(from, to models.ComplaintStatus) bool {
	if to != models.StatusInProgress {
		return false
	}
	return from == models.StatusResolved || from == models.StatusCompleted || from == models.StatusClosed
}

// StatusTitle returns the timeline title used when a complaint enters s.
func StatusTitle(s models.ComplaintStatus) string {
	if title, ok := statusTitles[s]; ok {
		return title
	}
	return "Status Updated"
}

func entryTypeFor(from, to models.ComplaintStatus) models.EntryType {
	if IsReopen(from, to) {
		return models.EntryReopened
	}
	if t, ok := statusEntryTypes[to]; ok {
		return t
	}
	return models.EntryComment
}

func titleFor(from, to models.ComplaintStatus) string {
	if IsReopen(from, to) {
		return "Complaint Reopened"
	}
	return StatusTitle(to)
}
