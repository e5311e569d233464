// Package caldav implements the remote calendar capability against CalDAV
// servers (Fastmail, Nextcloud, iCloud, self-hosted) with basic auth.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

// PropManaged marks calendar objects owned by this bridge.
const PropManaged = "X-NOTESYNC"

// Client is a remote calendar client for one CalDAV collection.
type Client struct {
	baseURL  string
	username string
	password string
	logger   *slog.Logger

	// mu guards calendarPath: batch workers share one client, and the
	// autodiscovered path must be resolved exactly once.
	mu           sync.Mutex
	calendarPath string // specific collection path, or empty until discovered
}

// NewClient creates a CalDAV client.
func NewClient(baseURL, username, password string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		logger:   logger,
	}
}

// WithCalendarPath pins the collection path instead of autodiscovering it.
func (c *Client) WithCalendarPath(path string) *Client {
	c.mu.Lock()
	c.calendarPath = path
	c.mu.Unlock()
	return c
}

// Insert creates a calendar object and returns its generated ID.
func (c *Client) Insert(ctx context.Context, payload domain.RemoteEvent) (string, error) {
	client, calPath, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if _, err := client.PutCalendarObject(ctx, objectPath(calPath, id), toICalendar(id, payload)); err != nil {
		return "", classify(err)
	}
	return id, nil
}

// Update overwrites the calendar object with the given ID.
func (c *Client) Update(ctx context.Context, id string, payload domain.RemoteEvent) (string, error) {
	client, calPath, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	if _, err := client.PutCalendarObject(ctx, objectPath(calPath, id), toICalendar(id, payload)); err != nil {
		return "", classify(err)
	}
	return id, nil
}

// Delete removes a calendar object. Already-gone objects count as success.
func (c *Client) Delete(ctx context.Context, id string) error {
	client, calPath, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, objectPath(calPath, id)); err != nil {
		classified := classify(err)
		if errors.Is(classified, domain.ErrNotFound) {
			return nil
		}
		return classified
	}
	return nil
}

// List returns bridge-managed objects inside the window, optionally narrowed
// by exact title.
func (c *Client) List(ctx context.Context, window domain.TimeWindow, titleQuery string) ([]domain.RemoteInstance, error) {
	client, calPath, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Props: []string{"VERSION"},
			Comps: []caldav.CalendarCompRequest{
				{
					Name:  "VEVENT",
					Props: []string{"SUMMARY", "DTSTART", "DTEND", "UID", PropManaged},
				},
			},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: window.Start,
					End:   window.End,
				},
			},
		},
	}

	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, classify(err)
	}

	var instances []domain.RemoteInstance
	for i := range objects {
		inst, managed := parseObject(&objects[i])
		if inst == nil || !managed {
			continue
		}
		if titleQuery != "" && inst.Title != titleQuery {
			continue
		}
		instances = append(instances, *inst)
	}
	return instances, nil
}

// ExchangeAuthCode is unsupported: CalDAV uses basic auth, not OAuth.
func (c *Client) ExchangeAuthCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return nil, errors.New("caldav: authorization code exchange not supported")
}

// RefreshAccessToken is unsupported: CalDAV uses basic auth, not OAuth.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return nil, errors.New("caldav: token refresh not supported")
}

func (c *Client) connect(ctx context.Context) (*caldav.Client, string, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := caldav.NewClient(
		webdav.HTTPClientWithBasicAuth(httpClient, c.username, c.password), c.baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create caldav client: %w", err)
	}

	calPath, err := c.collectionPath(ctx, client)
	if err != nil {
		return nil, "", err
	}
	return client, calPath, nil
}

// collectionPath returns the pinned collection path, autodiscovering and
// caching it on first use. Discovery runs under the lock so concurrent
// callers wait for one result instead of racing three PROPFIND round trips.
func (c *Client) collectionPath(ctx context.Context, client *caldav.Client) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calendarPath != "" {
		return c.calendarPath, nil
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", classify(err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", classify(err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", classify(err)
	}
	if len(cals) == 0 {
		return "", fmt.Errorf("%w: no calendars found", domain.ErrNotFound)
	}
	c.calendarPath = cals[0].Path
	return c.calendarPath, nil
}

func objectPath(calPath, id string) string {
	if !strings.HasSuffix(calPath, "/") {
		calPath += "/"
	}
	return calPath + id + ".ics"
}

// classify maps a go-webdav client failure onto the error taxonomy. The
// client surfaces raw HTTP errors without typed status codes, so the status
// is recovered from the message text.
func classify(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"):
		return fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	case strings.Contains(msg, "403"):
		return fmt.Errorf("%w: %v", domain.ErrPermission, err)
	case strings.Contains(msg, "404"), strings.Contains(msg, "410"):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
}

// toICalendar builds the VCALENDAR wrapping one VEVENT. All-day events use
// DATE values with the exclusive end-date convention.
func toICalendar(id string, payload domain.RemoteEvent) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//notesync//Calendar Bridge//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, id)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	event.Props.SetText(ical.PropSummary, payload.Title)

	switch {
	case payload.AllDay:
		event.Props.Set(dateProp(ical.PropDateTimeStart, payload.Start))
		event.Props.Set(dateProp(ical.PropDateTimeEnd, payload.End))
	case !payload.Start.IsZero():
		event.Props.SetDateTime(ical.PropDateTimeStart, payload.Start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, payload.End)
	}

	managed := ical.NewProp(PropManaged)
	managed.Value = "1"
	event.Props[PropManaged] = []ical.Prop{*managed}

	cal.Children = append(cal.Children, event.Component)
	return cal
}

func dateProp(name string, t time.Time) *ical.Prop {
	prop := ical.NewProp(name)
	prop.SetValueType(ical.ValueDate)
	prop.Value = t.Format("20060102")
	return prop
}

func parseObject(obj *caldav.CalendarObject) (*domain.RemoteInstance, bool) {
	if obj == nil || obj.Data == nil {
		return nil, false
	}
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}

		managed := false
		if props := child.Props[PropManaged]; len(props) > 0 && props[0].Value == "1" {
			managed = true
		}

		inst := &domain.RemoteInstance{}
		if props := child.Props[ical.PropUID]; len(props) > 0 {
			inst.ID = props[0].Value
		}
		if props := child.Props[ical.PropSummary]; len(props) > 0 {
			inst.Title = props[0].Value
		}

		icalEvent := &ical.Event{Component: child}
		if start, err := icalEvent.DateTimeStart(time.Local); err == nil {
			inst.Start = start
		}
		if end, err := icalEvent.DateTimeEnd(time.Local); err == nil {
			inst.End = end
		}
		return inst, managed
	}
	return nil, false
}
