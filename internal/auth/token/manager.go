// Package token manages the lifecycle of the stored OAuth credential.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/metrics"
	"golang.org/x/oauth2"
)

// DefaultExpiryMargin treats a token as expired this long before it really is.
const DefaultExpiryMargin = 60 * time.Second

var (
	ErrNoCredential    = errors.New("no stored credential")
	ErrNoRefreshToken  = errors.New("credential has no refresh token")
	ErrRefreshRejected = errors.New("refresh token rejected by provider")
)

// Store is the part of the credential store the manager needs.
type Store interface {
	Latest(ctx context.Context) (*models.Credential, error)
	UpdateToken(ctx context.Context, id string, u models.TokenUpdate) error
}

// Manager handles token lifecycle: expiry checks and refresh.
type Manager struct {
	store  Store
	config *oauth2.Config
	margin time.Duration
	now    func() time.Time
	logger *slog.Logger

	// mu serialises refreshes; with the re-read in Refresh two callers never
	// spend the same refresh token.
	mu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithExpiryMargin overrides DefaultExpiryMargin.
func WithExpiryMargin(d time.Duration) Option {
	return func(m *Manager) { m.margin = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for refresh diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a new token manager
func NewManager(store Store, config *oauth2.Config, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		config: config,
		margin: DefaultExpiryMargin,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsExpired reports whether c should be refreshed before use at now.
// A credential without a known lifetime is always expired.
func (m *Manager) IsExpired(c *models.Credential, now time.Time) bool {
	if c.ExpiresIn <= 0 {
		return true
	}
	deadline := c.UpdatedAt.Add(time.Duration(c.ExpiresIn)*time.Second - m.margin)
	return deadline.Before(now)
}

// Current returns the most recently created credential.
func (m *Manager) Current(ctx context.Context) (*models.Credential, error) {
	c, err := m.store.Latest(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Valid returns the current credential, refreshing it first if it has expired.
func (m *Manager) Valid(ctx context.Context) (*models.Credential, error) {
	c, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	if !m.IsExpired(c, m.now()) {
		return c, nil
	}
	m.logger.InfoContext(ctx, "access token expired, refreshing", "credential_id", c.ID)
	return m.Refresh(ctx, c)
}

// Refresh exchanges c's refresh token for a new access token and persists it
// on the same credential row. On failure the stored credential is unchanged.
func (m *Manager) Refresh(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	if c.RefreshToken == "" {
		metrics.TokenRefresh("no_refresh_token")
		return nil, ErrNoRefreshToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another caller may have refreshed c while we waited for the lock.
	if latest, err := m.store.Latest(ctx); err == nil && latest.ID == c.ID &&
		latest.UpdatedAt.After(c.UpdatedAt) && !m.IsExpired(latest, m.now()) {
		m.logger.DebugContext(ctx, "credential refreshed concurrently, reusing it", "credential_id", c.ID)
		return latest, nil
	}

	src := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: c.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		if isPermanentRefreshError(err) {
			metrics.TokenRefresh("rejected")
			m.logger.WarnContext(ctx, "refresh token rejected, please log in again", "credential_id", c.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		metrics.TokenRefresh("error")
		m.logger.WarnContext(ctx, "transient refresh failure", "credential_id", c.ID, "error", err)
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	now := m.now()
	update := models.TokenUpdate{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   lifetime(tok, now),
		UpdatedAt:   now,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		update.Scope = scope
	}
	// Persist rotated refresh token if provided (RFC 6749 compliance)
	if tok.RefreshToken != "" && tok.RefreshToken != c.RefreshToken {
		m.logger.InfoContext(ctx, "rotating refresh token", "credential_id", c.ID)
		update.RefreshToken = tok.RefreshToken
	}

	if err := m.store.UpdateToken(ctx, c.ID, update); err != nil {
		metrics.TokenRefresh("error")
		return nil, fmt.Errorf("save refreshed token: %w", err)
	}
	metrics.TokenRefresh("ok")

	refreshed := *c
	refreshed.AccessToken = update.AccessToken
	refreshed.ExpiresIn = update.ExpiresIn
	refreshed.UpdatedAt = update.UpdatedAt
	if update.RefreshToken != "" {
		refreshed.RefreshToken = update.RefreshToken
	}
	if update.Scope != "" {
		refreshed.Scope = update.Scope
	}
	if update.TokenType != "" {
		refreshed.TokenType = update.TokenType
	}
	m.logger.InfoContext(ctx, "refreshed access token", "credential_id", c.ID, "expires_in", refreshed.ExpiresIn)
	return &refreshed, nil
}

// lifetime prefers the wire expires_in and falls back to the computed expiry.
func lifetime(tok *oauth2.Token, now time.Time) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	secs := int64(tok.Expiry.Sub(now).Round(time.Second) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

func isPermanentRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode != "" {
		switch re.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	permanentMarkers := []string{
		"invalid_grant",
		"invalid_client",
		"unauthorized_client",
		"token has been expired or revoked",
		"revoked",
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Mask hides all but the tail of a token for display.
func Mask(t string) string {
	if len(t) < 20 {
		return strings.Repeat("*", len(t))
	}
	return "..." + t[len(t)-12:]
}
