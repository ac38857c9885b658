package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pysugar/calendar-notice/internal/auth/token"
	"github.com/pysugar/calendar-notice/internal/db/models"
)

type tokenView struct {
	ID              string    `json:"id"`
	AccessToken     string    `json:"access_token"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	Scope           string    `json:"scope,omitempty"`
	ExpiresIn       int64     `json:"expires_in"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Expired         bool      `json:"expired"`
}

func newTokenView(tokens TokenManager, c *models.Credential) tokenView {
	return tokenView{
		ID:              c.ID,
		AccessToken:     token.Mask(c.AccessToken),
		HasRefreshToken: c.RefreshToken != "",
		Scope:           c.Scope,
		ExpiresIn:       c.ExpiresIn,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Expired:         tokens.IsExpired(c, time.Now()),
	}
}

// TokenHandler shows the current credential with secrets masked.
func TokenHandler(tokens TokenManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := tokens.Current(r.Context())
		if err != nil {
			if isAuthError(err) {
				http.Error(w, "No credential stored, log in first", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to load credential", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, newTokenView(tokens, c))
	}
}

// RefreshTokenHandler forces a refresh of the current credential.
func RefreshTokenHandler(tokens TokenManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := tokens.Current(r.Context())
		if err != nil {
			if isAuthError(err) {
				http.Error(w, "No credential stored, log in first", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to load credential", http.StatusInternalServerError)
			return
		}
		refreshed, err := tokens.Refresh(r.Context(), c)
		if err != nil {
			logger.WarnContext(r.Context(), "manual refresh failed", "error", err)
			status := http.StatusBadGateway
			if isAuthError(err) {
				status = http.StatusUnauthorized
			}
			writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, newTokenView(tokens, refreshed))
	}
}
