package application

import "fmt"

// Result aggregates per-run outcome counters for one calendar source.
type Result struct {
	Synced  int // events created or updated remotely
	Skipped int // recurring or otherwise unsyncable events
	Failed  int // events whose remote call failed
	Deleted int // orphaned remote records removed
}

// Add merges another result into this one.
func (r *Result) Add(other Result) {
	r.Synced += other.Synced
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Deleted += other.Deleted
}

// String renders the post-run summary shown to the user.
func (r *Result) String() string {
	return fmt.Sprintf("synced=%d skipped=%d failed=%d deleted=%d",
		r.Synced, r.Skipped, r.Failed, r.Deleted)
}
