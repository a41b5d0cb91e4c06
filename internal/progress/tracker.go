// Package progress records technician work against a complaint and keeps the
// running total of hours consistent with the recorded updates.
package progress

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/timeline"
	"gorm.io/datatypes"
)

const defaultTechnician = "Technician"

// Request is one work log submitted by a technician. TimeSpent accepts whatever
// the client sent (number, numeric string, nothing); see ParseHours.
type Request struct {
	Notes      string
	TimeSpent  any
	Technician string
	Photos     []string
}

// Options tunes coercion of the reported hours.
type Options struct {
	// StrictHours rejects unparseable hours instead of recording zero.
	StrictHours bool
}

// CanLog reports whether work may be logged in status s.
func CanLog(s models.ComplaintStatus) bool {
	return s == models.StatusAssigned || s == models.StatusInProgress
}

// Add appends a progress update plus its "progress" timeline entry and
// recomputes TotalTimeSpent. Both appends happen on c or neither does.
func Add(c *models.Complaint, req Request, opts Options, now time.Time) (models.ProgressUpdate, models.TimelineEntry, error) {
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return models.ProgressUpdate{}, models.TimelineEntry{}, apperr.NewValidationError("notes", "is required")
	}
	hours, ok := ParseHours(req.TimeSpent)
	if !ok && opts.StrictHours {
		return models.ProgressUpdate{}, models.TimelineEntry{}, apperr.NewValidationError("timeSpent", "must be a non-negative number of hours")
	}
	if !CanLog(c.Status) {
		return models.ProgressUpdate{}, models.TimelineEntry{}, apperr.NewInvalidTransitionError(
			string(c.Status), string(models.EntryProgress), "work can only be logged while assigned or in progress")
	}

	technician := strings.TrimSpace(req.Technician)
	if technician == "" {
		technician = defaultTechnician
	}

	update := Append(c, models.ProgressUpdate{
		Notes:      notes,
		TimeSpent:  hours,
		Technician: technician,
		Photos:     photoList(req.Photos),
	}, now)

	entry := timeline.Append(c, models.TimelineEntry{
		Type:        models.EntryProgress,
		Title:       "Progress Update",
		Description: fmt.Sprintf("%s (%s hours spent)", notes, FormatHours(hours)),
		Actor:       technician,
		ActorRole:   models.RoleTechnician,
	}, now)

	c.UpdatedAt = now
	return update, entry, nil
}

// Append adds update to c and recomputes the total. It does not touch the
// timeline; callers that need the audit entry use Add.
func Append(c *models.Complaint, update models.ProgressUpdate, now time.Time) models.ProgressUpdate {
	update.ID = 0
	update.ComplaintID = c.ComplaintID
	if update.TimeSpent < 0 || math.IsNaN(update.TimeSpent) || math.IsInf(update.TimeSpent, 0) {
		update.TimeSpent = 0
	}
	if update.Date.IsZero() {
		update.Date = now
	}
	c.ProgressUpdates = append(c.ProgressUpdates, update)
	c.TotalTimeSpent = Total(c.ProgressUpdates)
	return update.Clone()
}

// Total sums the hours across updates.
func Total(updates []models.ProgressUpdate) float64 {
	var sum float64
	for _, u := range updates {
		sum += u.TimeSpent
	}
	return sum
}

// ParseHours coerces a client-supplied hour value. The second return is false
// when the input could not be read as a non-negative finite number, in which
// case the hours are 0. A missing value is 0 and counts as parsed.
func ParseHours(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, true
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// FormatHours renders hours without trailing zeros (1.5, 2, 0.25).
func FormatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func photoList(photos []string) datatypes.JSONSlice[string] {
	var out datatypes.JSONSlice[string]
	for _, p := range photos {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
