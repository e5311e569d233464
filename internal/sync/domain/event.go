package domain

import (
	"fmt"
	"time"
)

// LocalEvent is one user-authored calendar entry as read from a local source.
// The sync core treats it as read-only input for the duration of a run.
type LocalEvent struct {
	Title      string
	AllDay     bool
	Date       time.Time // calendar date, midnight in the local zone
	EndDate    time.Time // optional, all-day events only (zero = single day)
	StartTime  string    // "HH:MM", timed events only
	EndTime    string    // "HH:MM", optional (defaults to StartTime + 1h)
	ExplicitID string    // optional stable identifier assigned by the source
	SourcePath string    // stable local storage path
	Recurring  bool      // recurring events are skipped, never synced
}

// Key returns the stable identity used to correlate the event with its
// remote counterpart. SourcePath wins over ExplicitID because file paths
// survive front-matter edits. An empty key means the event is untrackable:
// it can be pushed once but never updated or deduplicated later.
func (e LocalEvent) Key() string {
	if e.SourcePath != "" {
		return e.SourcePath
	}
	return e.ExplicitID
}

// Trackable reports whether the event carries a stable identity.
func (e LocalEvent) Trackable() bool {
	return e.Key() != ""
}

// DedupKey returns the key used to collapse duplicate work items before
// scheduling. Untrackable events fall back to title+date so two keyless
// copies of the same entry do not race each other into the remote calendar.
func (e LocalEvent) DedupKey() string {
	if k := e.Key(); k != "" {
		return k
	}
	return fmt.Sprintf("%s|%s", e.Title, e.Date.Format("2006-01-02"))
}
