// Package calendar fetches upcoming events from Google Calendar.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Defaults for the fetch window.
const (
	DefaultCalendarID = "primary"
	DefaultLookback   = 10 * time.Minute
	DefaultLookahead  = 3 * 24 * time.Hour
	DefaultMaxResults = 10
)

// RemoteEvent is one event as listed by the provider.
// Start and End hold the provider's RFC 3339 date-time literal and are empty
// for all-day events, which only carry a date.
type RemoteEvent struct {
	ID          string
	Summary     string
	Description string
	Status      string
	Start       string
	End         string
	HangoutLink string
	ZoomLink    string
	TeamsLink   string
}

// Source lists upcoming events for an access token.
type Source interface {
	ListUpcomingEvents(ctx context.Context, accessToken string) ([]RemoteEvent, error)
}

// Options tune a GoogleSource. Zero values take the defaults above.
type Options struct {
	CalendarID string
	Lookback   time.Duration
	Lookahead  time.Duration
	MaxResults int64

	// Endpoint and HTTPClient override the API base URL and transport.
	Endpoint   string
	HTTPClient *http.Client
}

// GoogleSource reads events through the Calendar v3 API.
type GoogleSource struct {
	opts Options
	now  func() time.Time
}

// NewGoogleSource creates a GoogleSource.
func NewGoogleSource(opts Options) *GoogleSource {
	if opts.CalendarID == "" {
		opts.CalendarID = DefaultCalendarID
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Lookahead <= 0 {
		opts.Lookahead = DefaultLookahead
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleSource{opts: opts, now: time.Now}
}

func (s *GoogleSource) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	base := s.opts.HTTPClient
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   base.Transport,
		},
		Timeout: base.Timeout,
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.opts.Endpoint))
	}
	return gcal.NewService(ctx, opts...)
}

// ListUpcomingEvents returns single-instance events starting from the lookback
// margin up to the lookahead horizon, ordered by start time.
func (s *GoogleSource) ListUpcomingEvents(ctx context.Context, accessToken string) ([]RemoteEvent, error) {
	svc, err := s.service(ctx, accessToken)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create calendar service: %w", err)}
	}

	now := s.now()
	resp, err := svc.Events.List(s.opts.CalendarID).
		Context(ctx).
		TimeMin(now.Add(-s.opts.Lookback).Format(time.RFC3339)).
		TimeMax(now.Add(s.opts.Lookahead).Format(time.RFC3339)).
		MaxResults(s.opts.MaxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, classify(err)
	}

	events := make([]RemoteEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item == nil {
			continue
		}
		events = append(events, fromAPI(item))
	}
	return events, nil
}

func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrUnauthorized, gerr.Message)
		}
		return &TransportError{StatusCode: gerr.Code, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ParseError{Err: err}
	}
	return &TransportError{Err: err}
}

func fromAPI(e *gcal.Event) RemoteEvent {
	ev := RemoteEvent{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Status:      e.Status,
		HangoutLink: e.HangoutLink,
	}
	if e.Start != nil {
		ev.Start = e.Start.DateTime
	}
	if e.End != nil {
		ev.End = e.End.DateTime
	}

	texts := []string{e.Description, e.Location}
	if e.ConferenceData != nil {
		for _, ep := range e.ConferenceData.EntryPoints {
			if ep != nil {
				texts = append(texts, ep.Uri)
			}
		}
	}
	ev.ZoomLink = ExtractZoomLink(texts...)
	ev.TeamsLink = ExtractTeamsLink(texts...)
	return ev
}

// StartTime parses the start literal.
func (e RemoteEvent) StartTime() (time.Time, error) {
	return parseDateTime(e.ID, "start", e.Start)
}

// EndTime parses the end literal.
func (e RemoteEvent) EndTime() (time.Time, error) {
	return parseDateTime(e.ID, "end", e.End)
}

func parseDateTime(id, field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &ParseError{EventID: id, Field: field, Err: errMissing}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &ParseError{EventID: id, Field: field, Err: err}
	}
	return t, nil
}
