package google

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// Scopes required for reading the user's calendar.
var Scopes = []string{
	calendar.CalendarReadonlyScope,
}

// NewConfig returns the OAuth2 config for Google authentication.
func NewConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     googleOAuth.Endpoint,
	}
}

// ConfigFromSecretFile loads a client secret JSON downloaded from the Google
// Cloud console. Both "installed" and "web" client types are accepted.
func ConfigFromSecretFile(path, redirectURL string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth secret file: %w", err)
	}
	cfg, err := googleOAuth.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse oauth secret file: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}
