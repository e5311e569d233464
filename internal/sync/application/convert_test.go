package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/notesync/internal/sync/application"
	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

func TestToRemoteEvent_AllDay_SingleDay(t *testing.T) {
	event := domain.LocalEvent{
		Title:  "Conference",
		AllDay: true,
		Date:   time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local),
	}

	payload := application.ToRemoteEvent(event)

	assert.Equal(t, "Conference", payload.Title)
	assert.True(t, payload.AllDay)
	assert.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local), payload.Start)
	// Exclusive end: the day after the single event day.
	assert.Equal(t, time.Date(2025, 11, 11, 0, 0, 0, 0, time.Local), payload.End)
}

func TestToRemoteEvent_AllDay_MultiDay(t *testing.T) {
	event := domain.LocalEvent{
		Title:   "Offsite",
		AllDay:  true,
		Date:    time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local),
		EndDate: time.Date(2025, 11, 13, 0, 0, 0, 0, time.Local),
	}

	payload := application.ToRemoteEvent(event)

	assert.Equal(t, time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local), payload.Start)
	assert.Equal(t, time.Date(2025, 11, 13, 0, 0, 0, 0, time.Local), payload.End)
}

func TestToRemoteEvent_Timed(t *testing.T) {
	event := domain.LocalEvent{
		Title:     "Standup",
		Date:      time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local),
		StartTime: "09:30",
		EndTime:   "10:15",
	}

	payload := application.ToRemoteEvent(event)

	assert.False(t, payload.AllDay)
	assert.Equal(t, time.Date(2025, 11, 10, 9, 30, 0, 0, time.Local), payload.Start)
	assert.Equal(t, time.Date(2025, 11, 10, 10, 15, 0, 0, time.Local), payload.End)
}

func TestToRemoteEvent_Timed_DefaultDuration(t *testing.T) {
	event := domain.LocalEvent{
		Title:     "Standup",
		Date:      time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local),
		StartTime: "09:30",
	}

	payload := application.ToRemoteEvent(event)

	assert.Equal(t, time.Date(2025, 11, 10, 9, 30, 0, 0, time.Local), payload.Start)
	assert.Equal(t, payload.Start.Add(time.Hour), payload.End)
}

func TestToRemoteEvent_Timed_EndBeforeStart(t *testing.T) {
	event := domain.LocalEvent{
		Title:     "Late call",
		Date:      time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local),
		StartTime: "22:00",
		EndTime:   "21:00",
	}

	payload := application.ToRemoteEvent(event)

	// Invalid end falls back to the one-hour default.
	assert.Equal(t, payload.Start.Add(time.Hour), payload.End)
}

func TestToRemoteEvent_Timed_NoStartTime(t *testing.T) {
	event := domain.LocalEvent{
		Title: "Someday",
		Date:  time.Date(2025, 11, 10, 0, 0, 0, 0, time.Local),
	}

	payload := application.ToRemoteEvent(event)

	assert.Equal(t, "Someday", payload.Title)
	assert.True(t, payload.Start.IsZero())
	assert.True(t, payload.End.IsZero())
}
