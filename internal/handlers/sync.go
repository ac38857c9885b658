package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pysugar/calendar-notice/internal/auth/token"
	"github.com/pysugar/calendar-notice/internal/logging"
)

// SyncHandler runs a sync pass right away.
func SyncHandler(syncer Syncer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.StartCycle(r.Context(), "sync-api")
		res, err := syncer.RunOnce(ctx)
		if err != nil {
			logger.WarnContext(ctx, "manual sync failed", "error", err)
			status := http.StatusBadGateway
			if isAuthError(err) {
				status = http.StatusUnauthorized
			}
			writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"fetched": res.Fetched,
			"created": res.Created,
			"updated": res.Updated,
			"skipped": res.Skipped,
			"failed":  res.Failed,
		})
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, token.ErrNoCredential) ||
		errors.Is(err, token.ErrNoRefreshToken) ||
		errors.Is(err, token.ErrRefreshRejected)
}
