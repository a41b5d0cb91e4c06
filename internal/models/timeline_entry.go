package models

import (
	"time"
)

type EntryType string
type ActorRole string

const (
	EntrySubmitted    EntryType = "submitted"
	EntryAcknowledged EntryType = "acknowledged"
	EntryAssigned     EntryType = "assigned"
	EntryInProgress   EntryType = "in-progress"
	EntryProgress     EntryType = "progress"
	EntryResolved     EntryType = "resolved"
	EntryCompleted    EntryType = "completed"
	EntryRejected     EntryType = "rejected"
	EntryClosed       EntryType = "closed"
	EntryReopened     EntryType = "reopened"
	EntryComment      EntryType = "comment"
)

const (
	RoleCitizen    ActorRole = "citizen"
	RoleOfficer    ActorRole = "officer"
	RoleTechnician ActorRole = "technician"
	RoleAdmin      ActorRole = "admin"
	RoleSystem     ActorRole = "system"
)

func (r ActorRole) Valid() bool {
	switch r {
	case RoleCitizen, RoleOfficer, RoleTechnician, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

func (t EntryType) Valid() bool {
	switch t {
	case EntrySubmitted, EntryAcknowledged, EntryAssigned, EntryInProgress, EntryProgress,
		EntryResolved, EntryCompleted, EntryRejected, EntryClosed, EntryReopened, EntryComment:
		return true
	}
	return false
}

// TimelineEntry is one audit record on a complaint. Rows are only ever inserted.
type TimelineEntry struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	ComplaintID string    `json:"-" gorm:"not null;uniqueIndex:idx_timeline_complaint_seq"`
	Seq         int       `json:"seq" gorm:"not null;uniqueIndex:idx_timeline_complaint_seq"`
	Type        EntryType `json:"type" gorm:"not null"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	Actor       string    `json:"actor" gorm:"not null"`
	ActorRole   ActorRole `json:"actorRole" gorm:"not null;default:'system'"`
	RefersTo    *int      `json:"refersTo,omitempty"`
	Timestamp   time.Time `json:"timestamp" gorm:"not null"`
}

func (TimelineEntry) TableName() string {
	return "complaint_timeline_entries"
}

func (e TimelineEntry) Clone() TimelineEntry {
	out := e
	if e.RefersTo != nil {
		v := *e.RefersTo
		out.RefersTo = &v
	}
	return out
}
