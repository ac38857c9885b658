// Package reconcile merges a remote event batch into the local event store.
package reconcile

import (
	"errors"

	"github.com/pysugar/calendar-notice/internal/calendar"
	"github.com/pysugar/calendar-notice/internal/db/models"
)

var errMissingID = errors.New("missing id")

// DefaultLeadSeconds is the lead time given to newly seen events.
const DefaultLeadSeconds = 600

// Defaults are applied to the notification of every created event.
type Defaults struct {
	LeadSeconds int
}

// Update overwrites the provider-owned fields of one stored event.
type Update struct {
	ID     string
	Fields models.EventUpdate
}

// SkippedEvent is a remote event that could not be converted.
type SkippedEvent struct {
	ID  string
	Err error
}

// Plan is the set of writes that brings the store in line with one remote batch.
// Creates[i] is paired with NotificationCreates[i].
type Plan struct {
	Creates             []models.Event
	Updates             []Update
	NotificationCreates []models.Notification
	Skipped             []SkippedEvent
}

// Empty reports whether the plan carries no writes.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0
}

// IDs returns the distinct event ids of a remote batch, in batch order.
func IDs(remote []calendar.RemoteEvent) []string {
	seen := make(map[string]struct{}, len(remote))
	ids := make([]string, 0, len(remote))
	for _, r := range remote {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ids = append(ids, r.ID)
	}
	return ids
}

// Reconcile partitions remote by whether each id is already stored.
// Known ids become full-overwrite updates, unknown ids become creates with a
// default, enabled notification. Stored events missing from remote are left
// alone. When an id repeats within the batch the last well-formed occurrence
// is used. Events without a parseable start or end are reported in Skipped
// unless a well-formed copy of the same id is applied.
func Reconcile(remote []calendar.RemoteEvent, existing map[string]struct{}, d Defaults) Plan {
	if d.LeadSeconds <= 0 {
		d.LeadSeconds = DefaultLeadSeconds
	}

	fields := make([]models.EventUpdate, len(remote))
	errs := make([]error, len(remote))
	chosen := make(map[string]int, len(remote))
	for i, r := range remote {
		if r.ID == "" {
			errs[i] = &calendar.ParseError{Field: "id", Err: errMissingID}
		} else {
			fields[i], errs[i] = toUpdate(r)
		}
		prev, seen := chosen[r.ID]
		// A malformed copy never displaces a well-formed one.
		if !seen || errs[i] == nil || errs[prev] != nil {
			chosen[r.ID] = i
		}
	}

	var plan Plan
	for i, r := range remote {
		if chosen[r.ID] != i {
			continue
		}
		if errs[i] != nil {
			plan.Skipped = append(plan.Skipped, SkippedEvent{ID: r.ID, Err: errs[i]})
			continue
		}

		if _, ok := existing[r.ID]; ok {
			plan.Updates = append(plan.Updates, Update{ID: r.ID, Fields: fields[i]})
			continue
		}
		plan.Creates = append(plan.Creates, toEvent(r.ID, fields[i]))
		plan.NotificationCreates = append(plan.NotificationCreates, models.Notification{
			EventID:     r.ID,
			Enabled:     true,
			LeadSeconds: d.LeadSeconds,
		})
	}
	return plan
}

func toUpdate(r calendar.RemoteEvent) (models.EventUpdate, error) {
	start, err := r.StartTime()
	if err != nil {
		return models.EventUpdate{}, err
	}
	end, err := r.EndTime()
	if err != nil {
		return models.EventUpdate{}, err
	}
	return models.EventUpdate{
		Summary:       r.Summary,
		Description:   r.Description,
		Status:        models.ParseEventStatus(r.Status),
		HangoutLink:   r.HangoutLink,
		ZoomLink:      r.ZoomLink,
		TeamsLink:     r.TeamsLink,
		StartDatetime: r.Start,
		EndDatetime:   r.End,
		StartAt:       start.UTC(),
		EndAt:         end.UTC(),
	}, nil
}

func toEvent(id string, f models.EventUpdate) models.Event {
	return models.Event{
		ID:            id,
		Summary:       f.Summary,
		Description:   f.Description,
		Status:        f.Status,
		HangoutLink:   f.HangoutLink,
		ZoomLink:      f.ZoomLink,
		TeamsLink:     f.TeamsLink,
		StartDatetime: f.StartDatetime,
		EndDatetime:   f.EndDatetime,
		StartAt:       f.StartAt,
		EndAt:         f.EndAt,
	}
}
