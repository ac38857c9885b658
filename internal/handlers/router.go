// Package handlers serves the local HTTP API: OAuth login, events and manual triggers.
package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/metrics"
	"github.com/pysugar/calendar-notice/internal/reconcile"
)

// EventStore is the event store as seen by the API.
type EventStore interface {
	FindMany(ctx context.Context, q db.EventQuery) ([]models.Event, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	UpdateNotification(ctx context.Context, eventID string, u models.NotificationUpdate) error
}

// Syncer runs one sync pass on demand.
type Syncer interface {
	RunOnce(ctx context.Context) (reconcile.Result, error)
}

// TokenManager exposes the stored credential.
type TokenManager interface {
	Current(ctx context.Context) (*models.Credential, error)
	Refresh(ctx context.Context, c *models.Credential) (*models.Credential, error)
	IsExpired(c *models.Credential, now time.Time) bool
}

// Deps are the collaborators wired into the router.
type Deps struct {
	Events EventStore
	Syncer Syncer
	Tokens TokenManager

	Login    http.HandlerFunc
	Callback http.HandlerFunc

	AdminPassword string
	Metrics       bool
	Logger        *slog.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(accessLog(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// OAuth flow
	if d.Login != nil {
		r.Get("/auth/google/login", d.Login)
	}
	if d.Callback != nil {
		r.Get("/auth/google/callback", d.Callback)
	}

	if d.Metrics {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(adminAuth(d.AdminPassword))
		r.Get("/events", EventsHandler(d.Events))
		r.Get("/events/{id}", EventHandler(d.Events))
		r.Put("/events/{id}/notification", UpdateNotificationHandler(d.Events, logger))
		r.Post("/sync", SyncHandler(d.Syncer, logger))
		r.Get("/token", TokenHandler(d.Tokens))
		r.Post("/token/refresh", RefreshTokenHandler(d.Tokens, logger))
	})
	return r
}

// adminAuth requires HTTP Basic Auth with the given password when it is set.
func adminAuth(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" {
				next.ServeHTTP(w, r)
				return
			}
			_, pass, ok := r.BasicAuth()
			if !ok || subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="calendar-notice"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
