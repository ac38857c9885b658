package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "CALNOTICE_LISTEN", "CALNOTICE_DB_PATH",
		"CALNOTICE_OAUTH_SECRET_FILE", "CALNOTICE_SYNC_SCHEDULE", "CALNOTICE_LEAD_SECONDS",
		"CALNOTICE_METRICS", "CALNOTICE_NOTIFY_COMMAND",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsWithEnvSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	cfg, err := load("", "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8990" || cfg.Sync.Schedule != "@every 5m" || cfg.Notify.LeadSeconds != 600 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Sync.ExpiryMargin != time.Minute || cfg.Google.Lookahead != 72*time.Hour {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if got := cfg.RedirectURL(); got != "http://localhost:8990/auth/google/callback" {
		t.Fatalf("RedirectURL() = %q", got)
	}
}

func TestLoadMissingSecretsIsFatal(t *testing.T) {
	clearEnv(t)
	_, err := load("", "")
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_CLIENT_ID") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestLoadYAMLThenEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "calnotice.yaml", `
listen: 127.0.0.1:9000
db_path: /tmp/cal.db
google:
  client_id: yaml-id
  client_secret: yaml-secret
  lookahead: 24h
sync:
  schedule: "@every 1m"
  expiry_margin: 2m
notify:
  lead_seconds: 300
  command: ["notify-send", "-u", "critical"]
`)
	t.Setenv("CALNOTICE_SYNC_SCHEDULE", "*/10 * * * *")

	cfg, err := load(path, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" || cfg.DBPath != "/tmp/cal.db" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.Google.ClientID != "yaml-id" || cfg.Google.Lookahead != 24*time.Hour {
		t.Fatalf("google section not applied: %+v", cfg.Google)
	}
	if cfg.Sync.Schedule != "*/10 * * * *" {
		t.Fatalf("env should override yaml, got %q", cfg.Sync.Schedule)
	}
	if cfg.Sync.ExpiryMargin != 2*time.Minute || cfg.Notify.LeadSeconds != 300 {
		t.Fatalf("durations not decoded: %+v", cfg)
	}
	if len(cfg.Notify.Command) != 3 {
		t.Fatalf("command = %v", cfg.Notify.Command)
	}
	// Defaults survive for keys the file does not mention.
	if cfg.Google.CalendarID != "primary" || cfg.Notify.Schedule != "@every 30s" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "GOOGLE_CLIENT_ID=dot-id\nGOOGLE_CLIENT_SECRET=dot-secret\nCALNOTICE_LEAD_SECONDS=120\n")
	// godotenv never overrides variables that are already set, even to "".
	for _, key := range []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "CALNOTICE_LEAD_SECONDS"} {
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for _, key := range []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "CALNOTICE_LEAD_SECONDS"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := load("", envFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Google.ClientID != "dot-id" || cfg.Google.ClientSecret != "dot-secret" || cfg.Notify.LeadSeconds != 120 {
		t.Fatalf(".env not applied: %+v", cfg)
	}
}

func TestLoadMissingDotEnvIsIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALNOTICE_OAUTH_SECRET_FILE", "/etc/calnotice/oauth_secret.json")
	if _, err := load("", filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	if _, err := load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("expected error for missing config file")
	}
	if _, err := load(writeFile(t, "bad.yaml", "listen: [oops"), ""); err == nil {
		t.Fatal("expected yaml error")
	}
	if _, err := load(writeFile(t, "lead.yaml", "notify:\n  lead_seconds: -1\n"), ""); err == nil {
		t.Fatal("expected validation error for negative lead")
	}
	t.Setenv("CALNOTICE_LEAD_SECONDS", "ten")
	if _, err := load("", ""); err == nil {
		t.Fatal("expected error for bad CALNOTICE_LEAD_SECONDS")
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		listen, public, want string
	}{
		{listen: "127.0.0.1:8990", want: "http://localhost:8990"},
		{listen: "0.0.0.0:8080", want: "http://localhost:8080"},
		{listen: "192.168.1.5:8080", want: "http://192.168.1.5:8080"},
		{listen: "127.0.0.1:8990", public: "https://cal.example.com/", want: "https://cal.example.com"},
	}
	for _, tt := range tests {
		c := Config{Listen: tt.listen, PublicURL: tt.public}
		if got := c.BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%q, %q) = %q, want %q", tt.listen, tt.public, got, tt.want)
		}
	}
}
