package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/metrics"
	"gorm.io/gorm"
)

// CredentialStore persists OAuth credentials.
type CredentialStore struct {
	db *gorm.DB
}

// NewCredentialStore creates a credential store backed by db.
func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Latest returns the most recently created credential.
func (s *CredentialStore) Latest(ctx context.Context) (*models.Credential, error) {
	defer metrics.ObserveDBLatency("credential.latest", time.Now())

	var cred models.Credential
	err := s.db.WithContext(ctx).Order("created_at DESC").First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest credential: %w", err)
	}
	return &cred, nil
}

// Create inserts a new credential, filling in the id and timestamps when unset.
func (s *CredentialStore) Create(ctx context.Context, cred *models.Credential) error {
	defer metrics.ObserveDBLatency("credential.create", time.Now())

	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = cred.CreatedAt
	}
	// SQLite compares timestamps as text, so keep every row in one zone.
	cred.CreatedAt = cred.CreatedAt.UTC()
	cred.UpdatedAt = cred.UpdatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// UpdateToken rewrites the token fields of credential id in a single statement.
func (s *CredentialStore) UpdateToken(ctx context.Context, id string, u models.TokenUpdate) error {
	defer metrics.ObserveDBLatency("credential.update", time.Now())

	values := map[string]any{
		"access_token": u.AccessToken,
		"expires_in":   u.ExpiresIn,
		"updated_at":   u.UpdatedAt.UTC(),
	}
	// Providers usually omit these on refresh; keep what we have.
	if u.RefreshToken != "" {
		values["refresh_token"] = u.RefreshToken
	}
	if u.Scope != "" {
		values["scope"] = u.Scope
	}
	if u.TokenType != "" {
		values["token_type"] = u.TokenType
	}

	res := s.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update credential %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
