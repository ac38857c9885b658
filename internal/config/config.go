// Package config loads settings from defaults, a YAML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GoogleConfig holds the OAuth client and calendar query settings.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// SecretFile is a client secret JSON from the Google Cloud console.
	// When set it takes precedence over ClientID/ClientSecret.
	SecretFile string        `yaml:"oauth_secret_file"`
	CalendarID string        `yaml:"calendar_id"`
	Lookback   time.Duration `yaml:"lookback"`
	Lookahead  time.Duration `yaml:"lookahead"`
	MaxResults int64         `yaml:"max_results"`
}

type SyncConfig struct {
	Schedule     string        `yaml:"schedule"`
	Timeout      time.Duration `yaml:"timeout"`
	ExpiryMargin time.Duration `yaml:"expiry_margin"`
}

type NotifyConfig struct {
	Schedule    string        `yaml:"schedule"`
	Horizon     time.Duration `yaml:"horizon"`
	LeadSeconds int           `yaml:"lead_seconds"`
	// Command overrides the desktop alert command; title and body are appended.
	Command []string `yaml:"command"`
	// LogOnly disables the desktop alert and only logs.
	LogOnly bool `yaml:"log_only"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	PublicURL string `yaml:"public_url"`
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Metrics   bool   `yaml:"metrics"`
	// AdminPassword, when set, protects /api with HTTP Basic Auth.
	AdminPassword string `yaml:"admin_password"`
	Console       bool   `yaml:"console"`

	Google GoogleConfig `yaml:"google"`
	Sync   SyncConfig   `yaml:"sync"`
	Notify NotifyConfig `yaml:"notify"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:    "127.0.0.1:8990",
		DBPath:    "calendar-notice.db",
		LogLevel:  "info",
		LogFormat: "text",
		Metrics:   true,
		Console:   true,
		Google: GoogleConfig{
			CalendarID: "primary",
			Lookback:   10 * time.Minute,
			Lookahead:  3 * 24 * time.Hour,
			MaxResults: 10,
		},
		Sync: SyncConfig{
			Schedule:     "@every 5m",
			Timeout:      time.Minute,
			ExpiryMargin: 60 * time.Second,
		},
		Notify: NotifyConfig{
			Schedule:    "@every 30s",
			Horizon:     48 * time.Hour,
			LeadSeconds: 600,
		},
	}
}

// Load builds the configuration. path may be empty; a missing .env is ignored.
func Load(path string) (Config, error) {
	return load(path, ".env")
}

func load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Listen, "CALNOTICE_LISTEN")
	setString(&c.PublicURL, "CALNOTICE_PUBLIC_URL")
	setString(&c.DBPath, "CALNOTICE_DB_PATH")
	setString(&c.LogLevel, "CALNOTICE_LOG_LEVEL")
	setString(&c.LogFormat, "CALNOTICE_LOG_FORMAT")
	setString(&c.AdminPassword, "CALNOTICE_ADMIN_PASSWORD")
	setString(&c.Google.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Google.SecretFile, "CALNOTICE_OAUTH_SECRET_FILE")
	setString(&c.Google.CalendarID, "CALNOTICE_CALENDAR_ID")
	setString(&c.Sync.Schedule, "CALNOTICE_SYNC_SCHEDULE")
	setString(&c.Notify.Schedule, "CALNOTICE_NOTIFY_SCHEDULE")

	if v := os.Getenv("CALNOTICE_NOTIFY_COMMAND"); v != "" {
		c.Notify.Command = strings.Fields(v)
	}
	for key, dst := range map[string]*bool{
		"CALNOTICE_METRICS":        &c.Metrics,
		"CALNOTICE_CONSOLE":        &c.Console,
		"CALNOTICE_ALERT_LOG_ONLY": &c.Notify.LogOnly,
	} {
		if err := setBool(dst, key); err != nil {
			return err
		}
	}
	if v := os.Getenv("CALNOTICE_LEAD_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CALNOTICE_LEAD_SECONDS: %w", err)
		}
		c.Notify.LeadSeconds = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate checks required settings. Missing OAuth client secrets are fatal.
func (c Config) Validate() error {
	if c.Google.SecretFile == "" && (c.Google.ClientID == "" || c.Google.ClientSecret == "") {
		return errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET (or oauth_secret_file) are required")
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("listen %q: %w", c.Listen, err)
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.Notify.LeadSeconds <= 0 {
		return fmt.Errorf("notify.lead_seconds must be positive, got %d", c.Notify.LeadSeconds)
	}
	if c.Sync.ExpiryMargin < 0 {
		return fmt.Errorf("sync.expiry_margin must not be negative")
	}
	return nil
}

// BaseURL is the externally reachable URL of the local HTTP server.
func (c Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	host, port, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return "http://" + c.Listen
	}
	if host == "" || host == "0.0.0.0" || host == "127.0.0.1" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// RedirectURL is the OAuth callback registered with Google.
func (c Config) RedirectURL() string {
	return c.BaseURL() + "/auth/google/callback"
}

// LoginURL is where the user starts a new authorization.
func (c Config) LoginURL() string {
	return c.BaseURL() + "/auth/google/login"
}
