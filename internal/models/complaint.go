package models

import (
	"time"

	"gorm.io/gorm"
)

type ComplaintStatus string
type ComplaintCategory string
type ComplaintPriority string

const (
	StatusNew          ComplaintStatus = "new"
	StatusAcknowledged ComplaintStatus = "acknowledged"
	StatusAssigned     ComplaintStatus = "assigned"
	StatusInProgress   ComplaintStatus = "in-progress"
	StatusResolved     ComplaintStatus = "resolved"
	StatusCompleted    ComplaintStatus = "completed"
	StatusRejected     ComplaintStatus = "rejected"
	StatusClosed       ComplaintStatus = "closed"
)

const (
	CategoryWater    ComplaintCategory = "Water"
	CategoryRoad     ComplaintCategory = "Road"
	CategoryWaste    ComplaintCategory = "Waste"
	CategoryLight    ComplaintCategory = "Light"
	CategoryDrainage ComplaintCategory = "Drainage"
	CategoryOther    ComplaintCategory = "Other"
)

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityNormal ComplaintPriority = "normal"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
	PriorityUrgent ComplaintPriority = "urgent"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ComplaintStatus{
	StatusNew,
	StatusAcknowledged,
	StatusAssigned,
	StatusInProgress,
	StatusResolved,
	StatusCompleted,
	StatusRejected,
	StatusClosed,
}

var AllCategories = []ComplaintCategory{
	CategoryWater,
	CategoryRoad,
	CategoryWaste,
	CategoryLight,
	CategoryDrainage,
	CategoryOther,
}

var AllPriorities = []ComplaintPriority{
	PriorityLow,
	PriorityNormal,
	PriorityMedium,
	PriorityHigh,
	PriorityUrgent,
}

var categoryLabels = map[ComplaintCategory]string{
	CategoryWater:    "Water Leakage",
	CategoryRoad:     "Pothole",
	CategoryWaste:    "Waste Management",
	CategoryLight:    "Street Lighting",
	CategoryDrainage: "Drainage",
	CategoryOther:    "Other",
}

func (s ComplaintStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status.
func (s ComplaintStatus) IsTerminal() bool {
	return s == StatusRejected
}

func (c ComplaintCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable name shown to citizens.
func (c ComplaintCategory) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func (p ComplaintPriority) Valid() bool {
	for _, known := range AllPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Citizen is the filing party. It is fixed at creation.
type Citizen struct {
	Name     string `json:"name" gorm:"not null"`
	Email    string `json:"email" gorm:"not null;index"`
	Phone    string `json:"phone"`
	Initials string `json:"initials"`
}

// Assignee identifies the technician currently responsible for a complaint.
type Assignee struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

type Complaint struct {
	ID             uint              `json:"-" gorm:"primaryKey"`
	ComplaintID    string            `json:"complaintId" gorm:"uniqueIndex;not null"`
	Seq            int64             `json:"-" gorm:"uniqueIndex;not null"`
	Category       ComplaintCategory `json:"category" gorm:"not null;index"`
	CategoryLabel  string            `json:"categoryLabel" gorm:"not null"`
	Description    string            `json:"description" gorm:"type:text;not null"`
	Location       string            `json:"location" gorm:"not null"`
	Status         ComplaintStatus   `json:"status" gorm:"not null;default:'new';index"`
	Priority       ComplaintPriority `json:"priority" gorm:"not null;default:'normal';index"`
	Citizen        Citizen           `json:"citizen" gorm:"embedded;embeddedPrefix:citizen_"`
	AssignedTo     *Assignee         `json:"assignedTo" gorm:"serializer:json;type:jsonb"`
	AssignedAt     *time.Time        `json:"assignedAt"`
	ReassignedAt   *time.Time        `json:"reassignedAt,omitempty"`
	WorkStartedAt  *time.Time        `json:"workStartedAt"`
	ResolvedAt     *time.Time        `json:"resolvedAt"`
	ResolvedBy     string            `json:"resolvedBy,omitempty"`
	ClosedAt       *time.Time        `json:"closedAt"`
	TotalTimeSpent float64           `json:"totalTimeSpent" gorm:"not null;default:0"`
	Version        int               `json:"-" gorm:"not null;default:1"`
	CreatedAt      time.Time         `json:"createdAt" gorm:"index"`
	UpdatedAt      time.Time         `json:"updatedAt" gorm:"autoUpdateTime:false"`
	DeletedAt      gorm.DeletedAt    `json:"-" gorm:"index"`

	Timeline        []TimelineEntry  `json:"timeline" gorm:"foreignKey:ComplaintID;references:ComplaintID"`
	ProgressUpdates []ProgressUpdate `json:"progressUpdates" gorm:"foreignKey:ComplaintID;references:ComplaintID"`
}

func (Complaint) TableName() string {
	return "complaints"
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (c *Complaint) Clone() *Complaint {
	if c == nil {
		return nil
	}
	out := *c
	if c.AssignedTo != nil {
		a := *c.AssignedTo
		out.AssignedTo = &a
	}
	out.AssignedAt = cloneTime(c.AssignedAt)
	out.ReassignedAt = cloneTime(c.ReassignedAt)
	out.WorkStartedAt = cloneTime(c.WorkStartedAt)
	out.ResolvedAt = cloneTime(c.ResolvedAt)
	out.ClosedAt = cloneTime(c.ClosedAt)
	out.Timeline = make([]TimelineEntry, len(c.Timeline))
	for i := range c.Timeline {
		out.Timeline[i] = c.Timeline[i].Clone()
	}
	out.ProgressUpdates = make([]ProgressUpdate, len(c.ProgressUpdates))
	for i := range c.ProgressUpdates {
		out.ProgressUpdates[i] = c.ProgressUpdates[i].Clone()
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// AssignIdentifier sets the public identifier and propagates it to owned rows.
func (c *Complaint) AssignIdentifier(complaintID string, seq int64) {
	c.ComplaintID = complaintID
	c.Seq = seq
	for i := range c.Timeline {
		c.Timeline[i].ComplaintID = complaintID
	}
	for i := range c.ProgressUpdates {
		c.ProgressUpdates[i].ComplaintID = complaintID
	}
}
