package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pysugar/calendar-notice/internal/auth/token"
	"github.com/pysugar/calendar-notice/internal/calendar"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/metrics"
)

// Credentials supplies access tokens.
type Credentials interface {
	Valid(ctx context.Context) (*models.Credential, error)
	Refresh(ctx context.Context, c *models.Credential) (*models.Credential, error)
}

// EventStore is the write side of the event store used by a sync pass.
type EventStore interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	Create(ctx context.Context, ev models.Event, n models.Notification) error
	Update(ctx context.Context, id string, u models.EventUpdate) error
}

// Result summarises one sync pass.
type Result struct {
	Fetched int
	Created int
	Updated int
	Skipped int
	Failed  int
}

// Syncer runs sync passes: credential, fetch, diff, apply.
type Syncer struct {
	creds    Credentials
	source   calendar.Source
	store    EventStore
	defaults Defaults
	loginURL string
	logger   *slog.Logger

	// mu keeps two passes from interleaving their fetch and diff.
	mu sync.Mutex
}

// NewSyncer creates a Syncer. loginURL is shown to the user when a new
// authorization is required.
func NewSyncer(creds Credentials, source calendar.Source, store EventStore, defaults Defaults, loginURL string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		creds:    creds,
		source:   source,
		store:    store,
		defaults: defaults,
		loginURL: loginURL,
		logger:   logger,
	}
}

// RunOnce performs one sync pass. Errors that end the pass early are returned;
// per-event persistence failures are logged, counted and do not stop the pass.
func (s *Syncer) RunOnce(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remote, err := s.fetch(ctx)
	if err != nil {
		if errors.Is(err, token.ErrNoCredential) || errors.Is(err, token.ErrNoRefreshToken) || errors.Is(err, token.ErrRefreshRejected) {
			s.logger.WarnContext(ctx, "authorization required, skipping sync", "login_url", s.loginURL, "reason", err)
			metrics.SyncCycle("unauthorized")
		} else {
			metrics.SyncCycle("error")
		}
		return Result{}, err
	}

	res := Result{Fetched: len(remote)}
	existing, err := s.store.ExistingIDs(ctx, IDs(remote))
	if err != nil {
		metrics.PersistenceError("existing_ids")
		metrics.SyncCycle("error")
		return res, fmt.Errorf("load existing events: %w", err)
	}

	plan := Reconcile(remote, existing, s.defaults)
	for _, sk := range plan.Skipped {
		s.logger.WarnContext(ctx, "skipping malformed event", "event_id", sk.ID, "error", sk.Err)
	}
	res.Skipped = len(plan.Skipped)

	for _, u := range plan.Updates {
		if err := s.store.Update(ctx, u.ID, u.Fields); err != nil {
			s.logger.ErrorContext(ctx, "failed to update event", "event_id", u.ID, "error", err)
			metrics.PersistenceError("update")
			res.Failed++
			continue
		}
		res.Updated++
	}
	for i, ev := range plan.Creates {
		if err := s.store.Create(ctx, ev, plan.NotificationCreates[i]); err != nil {
			s.logger.ErrorContext(ctx, "failed to create event", "event_id", ev.ID, "error", err)
			metrics.PersistenceError("create")
			res.Failed++
			continue
		}
		res.Created++
	}

	metrics.Reconciled("update", res.Updated)
	metrics.Reconciled("create", res.Created)
	metrics.Reconciled("skip", res.Skipped)
	metrics.SyncCycle("ok")
	s.logger.InfoContext(ctx, "sync finished",
		"fetched", res.Fetched, "created", res.Created, "updated", res.Updated,
		"skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// fetch gets one remote snapshot. An unauthorized answer gets exactly one
// refresh and one retry.
func (s *Syncer) fetch(ctx context.Context) ([]calendar.RemoteEvent, error) {
	cred, err := s.creds.Valid(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}

	remote, err := s.source.ListUpcomingEvents(ctx, cred.AccessToken)
	if !errors.Is(err, calendar.ErrUnauthorized) {
		return remote, err
	}

	s.logger.InfoContext(ctx, "provider rejected access token, refreshing once")
	cred, err = s.creds.Refresh(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("refresh after unauthorized: %w", err)
	}
	return s.source.ListUpcomingEvents(ctx, cred.AccessToken)
}
