package application

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// Batch scheduler defaults. Sized for the Google Calendar API's default
// per-user rate limits; CalDAV servers tolerate far more.
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 500 * time.Millisecond
)

// runBatches executes items in bounded-concurrency batches: all items of a
// batch run concurrently, every outcome is awaited before the next batch
// starts, and one item's failure never cancels its siblings. Inter-batch
// pacing goes through a rate limiter so total remote-call pressure stays
// under provider limits. The returned slice is index-aligned with items.
func runBatches[T any](ctx context.Context, items []T, batchSize int, delay time.Duration, fn func(context.Context, T) error) []error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	errs := make([]error, len(items))

	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}

	for offset := 0; offset < len(items); offset += batchSize {
		if err := limiter.Wait(ctx); err != nil {
			for i := offset; i < len(items); i++ {
				errs[i] = err
			}
			return errs
		}

		end := offset + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = fn(ctx, items[i])
			}(i)
		}
		wg.Wait()
	}
	return errs
}

// dedupeEvents collapses events that resolve to the same work identity to a
// single representative, preserving first-seen order. Without this, two
// keyless copies of one entry would race each other through the engine after
// both concluded "no mapping".
func dedupeEvents(events []domain.LocalEvent) []domain.LocalEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]domain.LocalEvent, 0, len(events))
	for _, event := range events {
		key := event.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, event)
	}
	return out
}
