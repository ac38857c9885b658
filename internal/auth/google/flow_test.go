package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/logging"
	"golang.org/x/oauth2"
)

type memoryStore struct {
	created []*models.Credential
	err     error
}

func (s *memoryStore) Create(_ context.Context, c *models.Credential) error {
	if s.err != nil {
		return s.err
	}
	c.ID = fmt.Sprintf("cred-%d", len(s.created)+1)
	s.created = append(s.created, c)
	return nil
}

func newTestFlow(t *testing.T, tokenURL string, store CredentialCreator) *Flow {
	t.Helper()
	cfg := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8990/auth/google/callback",
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/o/oauth2/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return NewFlow(cfg, store, logging.Discard())
}

func TestLoginURL(t *testing.T) {
	f := newTestFlow(t, "http://unused", &memoryStore{})
	u, err := url.Parse(f.LoginURL())
	if err != nil {
		t.Fatalf("parse login url: %v", err)
	}
	q := u.Query()
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Fatalf("expected offline access with consent prompt, got %v", q)
	}
	if q.Get("state") != f.state || q.Get("client_id") != "client-id" {
		t.Fatalf("unexpected query: %v", q)
	}
	if !strings.Contains(q.Get("scope"), "calendar.readonly") {
		t.Fatalf("calendar scope missing: %q", q.Get("scope"))
	}
}

func TestHandleLoginRedirects(t *testing.T) {
	f := newTestFlow(t, "http://unused", &memoryStore{})
	rec := httptest.NewRecorder()
	f.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://accounts.example.com/") {
		t.Fatalf("unexpected redirect %q", loc)
	}
}

func TestHandleCallbackStoresCredential(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("code") != "auth-code" || r.PostForm.Get("grant_type") != "authorization_code" {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3599,"scope":"https://www.googleapis.com/auth/calendar.readonly"}`)
	}))
	defer tokenSrv.Close()

	store := &memoryStore{}
	f := newTestFlow(t, tokenSrv.URL, store)
	fixed := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+f.state+"&code=auth-code", nil)
	f.HandleCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 stored credential, got %d", len(store.created))
	}
	c := store.created[0]
	if c.AccessToken != "at" || c.RefreshToken != "rt" || c.ExpiresIn != 3599 || c.TokenType != "Bearer" {
		t.Fatalf("unexpected credential: %+v", c)
	}
	if !c.CreatedAt.Equal(fixed) || !c.UpdatedAt.Equal(fixed) {
		t.Fatalf("timestamps not taken from clock: %+v", c)
	}
	if !strings.Contains(rec.Body.String(), "calendar.readonly") {
		t.Fatalf("success page missing scope: %s", rec.Body.String())
	}
}

func TestHandleCallbackRejects(t *testing.T) {
	tests := []struct {
		name  string
		query func(f *Flow) string
	}{
		{name: "bad state", query: func(*Flow) string { return "state=forged&code=x" }},
		{name: "missing code", query: func(f *Flow) string { return "state=" + f.state }},
		{name: "provider error", query: func(f *Flow) string { return "error=access_denied&state=" + f.state }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{}
			f := newTestFlow(t, "http://unused", store)
			rec := httptest.NewRecorder()
			f.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+tt.query(f), nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if len(store.created) != 0 {
				t.Fatal("no credential should be stored")
			}
		})
	}
}

func TestConfigFromSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oauth_secret.json")
	secret := `{"installed":{"client_id":"cid.apps.googleusercontent.com","client_secret":"shh","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	cfg, err := ConfigFromSecretFile(path, "http://localhost:8990/auth/google/callback")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ClientID != "cid.apps.googleusercontent.com" || cfg.ClientSecret != "shh" {
		t.Fatalf("unexpected client: %+v", cfg)
	}
	if cfg.Endpoint.TokenURL != "https://oauth2.googleapis.com/token" {
		t.Fatalf("token url = %q", cfg.Endpoint.TokenURL)
	}
	if cfg.RedirectURL != "http://localhost:8990/auth/google/callback" {
		t.Fatalf("redirect url = %q", cfg.RedirectURL)
	}

	if _, err := ConfigFromSecretFile(filepath.Join(t.TempDir(), "missing.json"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
