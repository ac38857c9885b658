package google

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/pysugar/calendar-notice/internal/db/models"
	"golang.org/x/oauth2"
)

// CredentialCreator stores the credential produced by a completed handshake.
type CredentialCreator interface {
	Create(ctx context.Context, c *models.Credential) error
}

// Flow runs the authorization-code handshake against Google.
type Flow struct {
	config *oauth2.Config
	store  CredentialCreator
	logger *slog.Logger
	now    func() time.Time

	// state protects the callback against CSRF.
	state string
}

// NewFlow creates a login flow. The redirect URL in config must point at
// the callback route served by this process.
func NewFlow(config *oauth2.Config, store CredentialCreator, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		config: config,
		store:  store,
		logger: logger,
		now:    time.Now,
		state:  newState(),
	}
}

func newState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// LoginURL returns the Google consent page URL. Offline access with forced
// consent makes Google issue a refresh token every time.
func (f *Flow) LoginURL() string {
	return f.config.AuthCodeURL(f.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleLogin redirects the browser to Google's consent page.
func (f *Flow) HandleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, f.LoginURL(), http.StatusTemporaryRedirect)
}

func (f *Flow) validState(s string) bool {
	return subtle.ConstantTimeCompare([]byte(s), []byte(f.state)) == 1
}
