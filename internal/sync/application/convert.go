package application

import (
	"time"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

const clockLayout = "15:04"

// ToRemoteEvent converts a local event into the provider-neutral payload.
// Pure; it never sets a remote identifier.
//
// All-day events use the remote convention of an exclusive end date: the end
// is the day after the last day of the event, so a single-day event on the
// 10th gets end = the 11th. Timed events serialize the naive wall-clock time
// in the process-local zone; a missing end time defaults the duration to one
// hour. A timed event without a start time yields a title-only payload with
// zero times - callers get what they asked for, not an error.
func ToRemoteEvent(event domain.LocalEvent) domain.RemoteEvent {
	payload := domain.RemoteEvent{Title: event.Title}

	if event.AllDay {
		payload.AllDay = true
		payload.Start = dateOnly(event.Date)
		if !event.EndDate.IsZero() {
			payload.End = dateOnly(event.EndDate)
		} else {
			payload.End = payload.Start.AddDate(0, 0, 1)
		}
		return payload
	}

	start, ok := atClock(event.Date, event.StartTime)
	if !ok {
		return payload
	}
	payload.Start = start

	if end, ok := atClock(event.Date, event.EndTime); ok && end.After(start) {
		payload.End = end
	} else {
		payload.End = start.Add(time.Hour)
	}
	return payload
}

// dateOnly truncates to midnight in the local zone.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

func atClock(date time.Time, clock string) (time.Time, bool) {
	if clock == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(clockLayout, clock)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, time.Local), true
}
