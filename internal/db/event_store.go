package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventQuery filters FindMany. Zero values mean "no filter";
// a non-nil empty IDsIn matches nothing.
type EventQuery struct {
	StartFrom *time.Time // start_at >= StartFrom
	StartTo   *time.Time // start_at <= StartTo
	IDsIn     []string
}

// EventStore persists events together with their notification settings.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates an event store backed by db.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// FindMany returns events ordered by start time, each with its notification
// loaded by the same query.
func (s *EventStore) FindMany(ctx context.Context, q EventQuery) ([]models.Event, error) {
	defer metrics.ObserveDBLatency("event.find_many", time.Now())

	if q.IDsIn != nil && len(q.IDsIn) == 0 {
		return nil, nil
	}

	tx := s.db.WithContext(ctx).Joins("Notification").Order("events.start_at ASC")
	if q.StartFrom != nil {
		tx = tx.Where("events.start_at >= ?", q.StartFrom.UTC())
	}
	if q.StartTo != nil {
		tx = tx.Where("events.start_at <= ?", q.StartTo.UTC())
	}
	if q.IDsIn != nil {
		tx = tx.Where("events.id IN ?", q.IDsIn)
	}

	var events []models.Event
	if err := tx.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	return events, nil
}

// Get returns a single event with its notification.
func (s *EventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	defer metrics.ObserveDBLatency("event.get", time.Now())

	var ev models.Event
	err := s.db.WithContext(ctx).Joins("Notification").Where("events.id = ?", id).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &ev, nil
}

// ExistingIDs reports which of ids are already stored.
func (s *EventStore) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	defer metrics.ObserveDBLatency("event.existing_ids", time.Now())

	found := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var rows []string
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Where("id IN ?", ids).Pluck("id", &rows).Error; err != nil {
		return nil, fmt.Errorf("lookup event ids: %w", err)
	}
	for _, id := range rows {
		found[id] = struct{}{}
	}
	return found, nil
}

// Create inserts an event and its notification in one transaction.
func (s *EventStore) Create(ctx context.Context, ev models.Event, n models.Notification) error {
	defer metrics.ObserveDBLatency("event.create", time.Now())

	ev.StartAt = ev.StartAt.UTC()
	ev.EndAt = ev.EndAt.UTC()
	n.EventID = ev.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&ev).Error; err != nil {
			return err
		}
		return tx.Create(&n).Error
	})
	if err != nil {
		return fmt.Errorf("create event %s: %w", ev.ID, err)
	}
	return nil
}

// Update overwrites the provider-owned columns of event id.
// The notification row is not touched.
func (s *EventStore) Update(ctx context.Context, id string, u models.EventUpdate) error {
	defer metrics.ObserveDBLatency("event.update", time.Now())

	res := s.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(map[string]any{
		"summary":        u.Summary,
		"description":    u.Description,
		"status":         u.Status,
		"hangout_link":   u.HangoutLink,
		"zoom_link":      u.ZoomLink,
		"teams_link":     u.TeamsLink,
		"start_datetime": u.StartDatetime,
		"end_datetime":   u.EndDatetime,
		"start_at":       u.StartAt.UTC(),
		"end_at":         u.EndAt.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("update event %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNotification changes the notification settings of an event.
func (s *EventStore) UpdateNotification(ctx context.Context, eventID string, u models.NotificationUpdate) error {
	defer metrics.ObserveDBLatency("notification.update", time.Now())

	values := map[string]any{}
	if u.Enabled != nil {
		values["enabled"] = *u.Enabled
	}
	if u.LeadSeconds != nil {
		values["lead_seconds"] = *u.LeadSeconds
	}
	if len(values) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&models.Notification{}).Where("event_id = ?", eventID).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update notification %s: %w", eventID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
