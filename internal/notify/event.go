// Package notify fans committed complaint changes out to external channels.
//
// Delivery is fire-and-forget: the complaint service hands an Event to a
// Notifier after the store write succeeded and never waits on the outcome.
package notify

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventNewComplaint     EventType = "NEW_COMPLAINT"
	EventStatusChanged    EventType = "STATUS_CHANGED"
	EventTaskAssigned     EventType = "TASK_ASSIGNED"
	EventTaskReassigned   EventType = "TASK_REASSIGNED"
	EventTaskStarted      EventType = "TASK_STARTED"
	EventProgressUpdate   EventType = "PROGRESS_UPDATE"
	EventTaskCompleted    EventType = "TASK_COMPLETED"
	EventCommentAdded     EventType = "COMMENT_ADDED"
	EventComplaintDeleted EventType = "COMPLAINT_DELETED"
)

// Event describes one committed change to a complaint.
type Event struct {
	Type           EventType `json:"type"`
	ComplaintID    string    `json:"complaintId"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	ActorRole      string    `json:"actorRole,omitempty"`
	TechnicianID   string    `json:"technicianId,omitempty"`
	CitizenEmail   string    `json:"citizenEmail,omitempty"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(Event) {}
