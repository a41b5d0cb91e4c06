// Package stats derives point-in-time summaries from a complaint collection.
// Nothing here is cached or persisted; callers recompute on every request.
package stats

import (
	"time"

	"github.com/complaintdesk/backend/internal/models"
)

// RecentWindow is the trailing window counted by NewThisWeek.
const RecentWindow = 7 * 24 * time.Hour

type ComplaintStats struct {
	Total        int            `json:"total"`
	New          int            `json:"new"`
	Acknowledged int            `json:"acknowledged"`
	Assigned     int            `json:"assigned"`
	InProgress   int            `json:"inProgress"`
	Resolved     int            `json:"resolved"`
	Completed    int            `json:"completed"`
	Rejected     int            `json:"rejected"`
	Closed       int            `json:"closed"`
	Other        int            `json:"other"`
	ByStatus     map[string]int `json:"byStatus"`
	Categories   map[string]int `json:"categories"`
	Priorities   map[string]int `json:"priorities"`
	NewThisWeek  int            `json:"newThisWeek"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}

// Compute tallies complaints as of now. Unknown statuses land in Other.
func Compute(complaints []models.Complaint, now time.Time) ComplaintStats {
	s := ComplaintStats{
		ByStatus:    make(map[string]int),
		Categories:  make(map[string]int),
		Priorities:  make(map[string]int),
		GeneratedAt: now,
	}
	since := now.Add(-RecentWindow)

	for i := range complaints {
		c := &complaints[i]
		s.Total++
		s.ByStatus[string(c.Status)]++
		s.Categories[string(c.Category)]++
		s.Priorities[string(c.Priority)]++

		switch c.Status {
		case models.StatusNew:
			s.New++
		case models.StatusAcknowledged:
			s.Acknowledged++
		case models.StatusAssigned:
			s.Assigned++
		case models.StatusInProgress:
			s.InProgress++
		case models.StatusResolved:
			s.Resolved++
		case models.StatusCompleted:
			s.Completed++
		case models.StatusRejected:
			s.Rejected++
		case models.StatusClosed:
			s.Closed++
		default:
			s.Other++
		}

		if !c.CreatedAt.Before(since) {
			s.NewThisWeek++
		}
	}
	return s
}

// TechnicianStats summarises one technician's workload.
type TechnicianStats struct {
	TechnicianID   string  `json:"technicianId"`
	TotalTasks     int     `json:"totalTasks"`
	ActiveTasks    int     `json:"activeTasks"`
	CompletedTasks int     `json:"completedTasks"`
	TotalTimeSpent float64 `json:"totalTimeSpent"`
	AverageTime    float64 `json:"averageTime"`
}

// ComputeTechnician summarises the complaints currently assigned to
// technicianID. AverageTime is hours per finished task.
func ComputeTechnician(technicianID string, complaints []models.Complaint) TechnicianStats {
	ts := TechnicianStats{TechnicianID: technicianID}
	for i := range complaints {
		c := &complaints[i]
		if c.AssignedTo == nil || c.AssignedTo.ID != technicianID {
			continue
		}
		ts.TotalTasks++
		ts.TotalTimeSpent += c.TotalTimeSpent
		switch c.Status {
		case models.StatusAssigned, models.StatusInProgress:
			ts.ActiveTasks++
		case models.StatusResolved, models.StatusCompleted, models.StatusClosed:
			ts.CompletedTasks++
		}
	}
	if ts.CompletedTasks > 0 {
		ts.AverageTime = ts.TotalTimeSpent / float64(ts.CompletedTasks)
	}
	return ts
}
