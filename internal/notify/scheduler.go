// Package notify decides which stored events are about to start and alerts on them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/metrics"
)

// DefaultHorizon bounds how far ahead a tick looks for events.
const DefaultHorizon = 48 * time.Hour

// EventStore is the part of the event store the scheduler reads and writes.
type EventStore interface {
	FindMany(ctx context.Context, q db.EventQuery) ([]models.Event, error)
	UpdateNotification(ctx context.Context, eventID string, u models.NotificationUpdate) error
}

// Alerter performs a user-visible alert for one event.
type Alerter interface {
	Notify(ctx context.Context, ev models.Event) error
}

// IsDue reports whether ev's alert should fire at now: the notification is
// enabled and the event starts within its lead time.
func IsDue(ev models.Event, now time.Time) bool {
	n := ev.Notification
	return n.Enabled && ev.StartAt.Sub(now) < n.Lead()
}

// Scheduler fires each enabled notification once and then disables it.
type Scheduler struct {
	store   EventStore
	alerter Alerter
	horizon time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler. A non-positive horizon means DefaultHorizon.
func NewScheduler(store EventStore, alerter Alerter, horizon time.Duration, logger *slog.Logger) *Scheduler {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		alerter: alerter,
		horizon: horizon,
		now:     time.Now,
		logger:  logger,
	}
}

// Tick runs one poll: every due event is alerted and then disabled.
// A failed alert still disables the event. A failed disable leaves it armed,
// so it alerts again on the next tick.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	now := s.now()
	to := now.Add(s.horizon)
	events, err := s.store.FindMany(ctx, db.EventQuery{StartFrom: &now, StartTo: &to})
	if err != nil {
		return 0, fmt.Errorf("load upcoming events: %w", err)
	}

	fired := 0
	disabled := false
	for _, ev := range events {
		if !IsDue(ev, now) {
			continue
		}
		s.logger.InfoContext(ctx, "event starting soon", "event_id", ev.ID, "summary", ev.Summary, "start", ev.StartDatetime)
		if err := s.alerter.Notify(ctx, ev); err != nil {
			metrics.AlertFailed()
			s.logger.WarnContext(ctx, "alert failed", "event_id", ev.ID, "error", err)
		}
		fired++
		metrics.NotificationFired()

		if err := s.store.UpdateNotification(ctx, ev.ID, models.NotificationUpdate{Enabled: &disabled}); err != nil {
			metrics.PersistenceError("disable_notification")
			s.logger.ErrorContext(ctx, "failed to disable notification, it may fire again", "event_id", ev.ID, "error", err)
		}
	}
	return fired, nil
}
