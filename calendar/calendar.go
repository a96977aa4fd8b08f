// Package calendar lists a user's Google Calendar events for one day using
// the delegated grant.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	qerrors "github.com/pascalpierre555/quantix/internal/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/calendar/v3"
	DateLayout     = "2006-01-02"

	maxEvents = 50
)

// AccessTokener yields a usable access token for a user, refreshing if needed.
type AccessTokener interface {
	AccessToken(ctx context.Context, username string) (string, error)
}

// Event is the trimmed view the device renders. Start and End carry either
// an RFC 3339 timestamp or, for all-day events, a date.
type Event struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type Client struct {
	tokens     AccessTokener
	baseURL    string
	httpClient *http.Client
	location   *time.Location
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLocation sets the zone used to turn a date into a day window.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		c.location = loc
	}
}

func New(tokens AccessTokener, options ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[calendar.New] access token source is required")
	}
	c := &Client{
		tokens:     tokens,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		location:   time.UTC,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t eventTime) String() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

type eventsResponse struct {
	Items []struct {
		Summary string    `json:"summary"`
		Start   eventTime `json:"start"`
		End     eventTime `json:"end"`
	} `json:"items"`
}

// Events returns username's primary calendar events on date (YYYY-MM-DD).
func (c *Client) Events(ctx context.Context, username, date string) ([]Event, error) {
	day, err := time.ParseInLocation(DateLayout, date, c.location)
	if err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrInvalidRequest, "date %q", date)
	}

	accessToken, err := c.tokens.AccessToken(ctx, username)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("timeMin", day.Format(time.RFC3339))
	q.Set("timeMax", day.AddDate(0, 0, 1).Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", fmt.Sprint(maxEvents))
	endpoint := c.baseURL + "/calendars/primary/events?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	resp, err := client.Do(req)
	if err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrProviderUnavailable, "calendar: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, qerrors.Wrapf(qerrors.ErrProviderRejected, "calendar status %d: %s", resp.StatusCode, body)
	}

	var parsed eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, qerrors.Wrapf(qerrors.ErrProviderRejected, "decode calendar response: %v", err)
	}

	events := make([]Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		events = append(events, Event{
			Summary: item.Summary,
			Start:   item.Start.String(),
			End:     item.End.String(),
		})
	}
	return events, nil
}
