// Package google implements the remote calendar capability against the
// Google Calendar REST API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/felixgeelhaar/notesync/internal/sync/domain"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// managedTag is the private extended property marking records owned by this
// bridge, so list queries never touch the user's own events.
const managedTag = "notesync"

const (
	dateLayout     = "2006-01-02"
	requestTimeout = 15 * time.Second
)

// credentialSource supplies the current bearer token per request. The token
// manager refreshes proactively; this client never refreshes on its own.
type credentialSource interface {
	AccessToken() string
}

// Client is a remote calendar client for one Google calendar.
type Client struct {
	oauthCfg   *oauth2.Config
	creds      credentialSource
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	baseURL    string
	calendarID string
	logger     *slog.Logger
}

// NewClient creates a Google Calendar client. The oauth config is used only
// for the code-exchange and token-refresh capabilities.
func NewClient(oauthCfg *oauth2.Config, calendarID string, logger *slog.Logger) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name: "google-calendar",
	})
	return &Client{
		oauthCfg:   oauthCfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		breaker:    breaker,
		baseURL:    defaultBaseURL,
		calendarID: calendarID,
		logger:     logger,
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

// WithCredentials wires the bearer-token source. Set after construction
// because the token manager needs this client as its refresher.
func (c *Client) WithCredentials(creds credentialSource) *Client {
	c.creds = creds
	return c
}

// Insert creates a record and returns its Google-generated ID.
func (c *Client) Insert(ctx context.Context, payload domain.RemoteEvent) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	resp, err := c.do(ctx, http.MethodPost, endpoint, toGoogleEvent(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return "", err
	}
	return decodeEventID(resp.Body)
}

// Update overwrites the record with the given ID.
func (c *Client) Update(ctx context.Context, id string, payload domain.RemoteEvent) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodPut, endpoint, toGoogleEvent(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return "", err
	}
	return decodeEventID(resp.Body)
}

// Delete removes a record. Already-gone responses count as success.
func (c *Client) Delete(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(id))
	resp, err := c.do(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	return classifyStatus(resp)
}

// List returns bridge-managed records inside the window, optionally narrowed
// by a title query.
func (c *Client) List(ctx context.Context, window domain.TimeWindow, titleQuery string) ([]domain.RemoteInstance, error) {
	params := url.Values{}
	params.Set("timeMin", window.Start.UTC().Format(time.RFC3339))
	params.Set("timeMax", window.End.UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("privateExtendedProperty", managedTag+"=1")
	if titleQuery != "" {
		params.Set("q", titleQuery)
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s",
		c.baseURL, url.PathEscape(c.calendarID), params.Encode())

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var payload struct {
		Items []struct {
			ID      string          `json:"id"`
			Summary string          `json:"summary"`
			Start   googleEventTime `json:"start"`
			End     googleEventTime `json:"end"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode list response: %v", domain.ErrTransient, err)
	}

	instances := make([]domain.RemoteInstance, 0, len(payload.Items))
	for _, item := range payload.Items {
		start, ok := item.Start.parse()
		if !ok {
			continue
		}
		end, _ := item.End.parse()
		instances = append(instances, domain.RemoteInstance{
			ID:    item.ID,
			Title: item.Summary,
			Start: start,
			End:   end,
		})
	}
	return instances, nil
}

// ExchangeAuthCode trades an authorization code for tokens.
func (c *Client) ExchangeAuthCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}
	return token, nil
}

// RefreshAccessToken trades a refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}
	return token, nil
}

// AuthURL returns the provider consent URL for the CLI connect flow.
func (c *Client) AuthURL(state string) string {
	return c.oauthCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken())
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: circuit breaker open: %v", domain.ErrTransient, err)
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
}

// classifyStatus maps an HTTP response onto the sync error taxonomy.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: status=%d", domain.ErrAuthExpired, resp.StatusCode)
	case http.StatusForbidden:
		return fmt.Errorf("%w: status=%d body=%s", domain.ErrPermission, resp.StatusCode, body)
	case http.StatusNotFound, http.StatusGone:
		return fmt.Errorf("%w: status=%d", domain.ErrNotFound, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status=%d body=%s", domain.ErrTransient, resp.StatusCode, body)
	}
}

func decodeEventID(body io.Reader) (string, error) {
	var event struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(body).Decode(&event); err != nil {
		return "", fmt.Errorf("%w: decode event response: %v", domain.ErrTransient, err)
	}
	if event.ID == "" {
		return "", fmt.Errorf("%w: response carried no event id", domain.ErrTransient)
	}
	return event.ID, nil
}

// googleEventTime is either a dateTime (timed) or a date (all-day).
type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

func (t googleEventTime) parse() (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		return parsed, err == nil
	}
	if t.Date != "" {
		parsed, err := time.Parse(dateLayout, t.Date)
		return parsed, err == nil
	}
	return time.Time{}, false
}

type googleEvent struct {
	Summary            string `json:"summary"`
	ExtendedProperties struct {
		Private map[string]string `json:"private,omitempty"`
	} `json:"extendedProperties"`
	Start *googleEventTime `json:"start,omitempty"`
	End   *googleEventTime `json:"end,omitempty"`
}

// toGoogleEvent builds the wire payload. The record ID is never set; Google
// assigns IDs on insert and identity lives in the mapping table.
func toGoogleEvent(payload domain.RemoteEvent) googleEvent {
	event := googleEvent{Summary: payload.Title}
	event.ExtendedProperties.Private = map[string]string{managedTag: "1"}

	switch {
	case payload.AllDay:
		event.Start = &googleEventTime{Date: payload.Start.Format(dateLayout)}
		event.End = &googleEventTime{Date: payload.End.Format(dateLayout)}
	case !payload.Start.IsZero():
		event.Start = &googleEventTime{DateTime: payload.Start.Format(time.RFC3339)}
		event.End = &googleEventTime{DateTime: payload.End.Format(time.RFC3339)}
	}
	return event
}
