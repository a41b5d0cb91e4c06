// Package timeline is the append-only audit log attached to every complaint.
//
// Storage order is chronological ascending: Append always writes at the tail
// and never rewrites an earlier entry. Presentation order is the caller's
// choice; NewestFirst exists for the common newest-on-top view.
package timeline

import (
	"fmt"
	"time"

	"github.com/complaintdesk/backend/internal/models"
)

const defaultActor = "System"

// Append stamps entry with its position, default role and timestamp and adds it
// at the tail of the complaint's timeline. The returned value is a copy of the
// stored entry.
func Append(c *models.Complaint, entry models.TimelineEntry, now time.Time) models.TimelineEntry {
	entry.ID = 0
	entry.ComplaintID = c.ComplaintID
	entry.Seq = len(c.Timeline) + 1
	if entry.Actor == "" {
		entry.Actor = defaultActor
	}
	if entry.ActorRole == "" {
		entry.ActorRole = models.RoleSystem
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	// Never let a skewed clock reorder history.
	if n := len(c.Timeline); n > 0 && entry.Timestamp.Before(c.Timeline[n-1].Timestamp) {
		entry.Timestamp = c.Timeline[n-1].Timestamp
	}

	c.Timeline = append(c.Timeline, entry)
	return entry.Clone()
}

// Entries returns a copy of the complaint's timeline in storage order.
func Entries(c *models.Complaint) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(c.Timeline))
	for i := range c.Timeline {
		out[i] = c.Timeline[i].Clone()
	}
	return out
}

// Since returns copies of the entries appended after the first n.
func Since(c *models.Complaint, n int) []models.TimelineEntry {
	if n >= len(c.Timeline) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]models.TimelineEntry, 0, len(c.Timeline)-n)
	for _, e := range c.Timeline[n:] {
		out = append(out, e.Clone())
	}
	return out
}

// NewestFirst returns a reversed copy for display.
func NewestFirst(entries []models.TimelineEntry) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e.Clone()
	}
	return out
}

// Find returns the entry at seq.
func Find(c *models.Complaint, seq int) (models.TimelineEntry, bool) {
	if seq < 1 || seq > len(c.Timeline) {
		return models.TimelineEntry{}, false
	}
	return c.Timeline[seq-1].Clone(), true
}

// Verify checks that entries form one linear history: contiguous seq numbers
// starting at 1 and non-decreasing timestamps.
func Verify(entries []models.TimelineEntry) error {
	for i, e := range entries {
		if e.Seq != i+1 {
			return fmt.Errorf("entry %d has seq %d", i+1, e.Seq)
		}
		if i > 0 && e.Timestamp.Before(entries[i-1].Timestamp) {
			return fmt.Errorf("entry %d is older than entry %d", e.Seq, entries[i-1].Seq)
		}
		if e.RefersTo != nil && (*e.RefersTo < 1 || *e.RefersTo >= e.Seq) {
			return fmt.Errorf("entry %d refers to unknown entry %d", e.Seq, *e.RefersTo)
		}
	}
	return nil
}
