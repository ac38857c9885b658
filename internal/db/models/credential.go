package models

import "time"

// Credential stores one OAuth2 token grant for the calendar provider.
// The row with the most recent CreatedAt is the current credential.
type Credential struct {
	ID           string `gorm:"primaryKey"` // UUID
	AccessToken  string
	RefreshToken string // empty when the provider did not issue one
	Scope        string
	TokenType    string
	ExpiresIn    int64     // lifetime in seconds as issued, 0 when unknown
	CreatedAt    time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

// TableName keeps the table name used by earlier releases.
func (Credential) TableName() string {
	return "oauth_tokens"
}

// TokenUpdate carries the fields rewritten by a refresh.
// Empty RefreshToken, Scope and TokenType leave the stored values untouched.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	TokenType    string
	ExpiresIn    int64
	UpdatedAt    time.Time
}
