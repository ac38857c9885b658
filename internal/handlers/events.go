package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/db/models"
)

// EventView is the JSON shape of a stored event.
type EventView struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	HangoutLink string `json:"hangout_link,omitempty"`
	ZoomLink    string `json:"zoom_link,omitempty"`
	TeamsLink   string `json:"teams_link,omitempty"`

	Notification NotificationView `json:"notification"`
}

type NotificationView struct {
	Enabled     bool `json:"enabled"`
	LeadSeconds int  `json:"lead_seconds"`
}

func newEventView(ev models.Event) EventView {
	return EventView{
		ID:          ev.ID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Status:      string(ev.Status),
		Start:       ev.StartDatetime,
		End:         ev.EndDatetime,
		HangoutLink: ev.HangoutLink,
		ZoomLink:    ev.ZoomLink,
		TeamsLink:   ev.TeamsLink,
		Notification: NotificationView{
			Enabled:     ev.Notification.Enabled,
			LeadSeconds: ev.Notification.LeadSeconds,
		},
	}
}

// EventsHandler lists stored events. Optional from/to query parameters
// (RFC 3339) bound the start time.
func EventsHandler(store EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q db.EventQuery
		for name, dst := range map[string]**time.Time{"from": &q.StartFrom, "to": &q.StartTo} {
			v := r.URL.Query().Get(name)
			if v == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, fmt.Sprintf("Invalid %s: %v", name, err), http.StatusBadRequest)
				return
			}
			*dst = &t
		}

		events, err := store.FindMany(r.Context(), q)
		if err != nil {
			http.Error(w, "Failed to load events", http.StatusInternalServerError)
			return
		}
		views := make([]EventView, 0, len(events))
		for _, ev := range events {
			views = append(views, newEventView(ev))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// EventHandler returns a single event.
func EventHandler(store EventStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to load event", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, newEventView(*ev))
	}
}

type notificationRequest struct {
	Enabled     *bool `json:"enabled"`
	LeadSeconds *int  `json:"lead_seconds"`
}

// UpdateNotificationHandler lets the user toggle an event's alert or change its lead time.
func UpdateNotificationHandler(store EventStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req notificationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.Enabled == nil && req.LeadSeconds == nil {
			http.Error(w, "Nothing to update", http.StatusBadRequest)
			return
		}
		if req.LeadSeconds != nil && *req.LeadSeconds <= 0 {
			http.Error(w, "lead_seconds must be positive", http.StatusBadRequest)
			return
		}

		err := store.UpdateNotification(r.Context(), id, models.NotificationUpdate{Enabled: req.Enabled, LeadSeconds: req.LeadSeconds})
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to update notification", "event_id", id, "error", err)
			http.Error(w, "Failed to update notification", http.StatusInternalServerError)
			return
		}

		ev, err := store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "Failed to load event", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, newEventView(*ev))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
