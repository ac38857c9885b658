package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/pysugar/calendar-notice/internal/auth/token"
	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/logging"
	"github.com/pysugar/calendar-notice/internal/reconcile"
)

type fakeTokens struct {
	cred       *models.Credential
	currentErr error
	refreshErr error
	refreshed  int
}

func (f *fakeTokens) Current(ctx context.Context) (*models.Credential, error) {
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.cred, nil
}

func (f *fakeTokens) Refresh(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	f.refreshed++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	out := *c
	out.AccessToken = "ya29.refreshed-access-token-value"
	out.ExpiresIn = 3599
	return &out, nil
}

func (f *fakeTokens) IsExpired(c *models.Credential, now time.Time) bool { return false }

type fakeSyncer struct {
	res   reconcile.Result
	err   error
	calls int
}

func (f *fakeSyncer) RunOnce(ctx context.Context) (reconcile.Result, error) {
	f.calls++
	return f.res, f.err
}

type fakeEvents struct {
	events []models.Event
	query  db.EventQuery
}

func (f *fakeEvents) FindMany(ctx context.Context, q db.EventQuery) ([]models.Event, error) {
	f.query = q
	return f.events, nil
}

func newTestConsole(input string, tokens Tokens, syncer Syncer, events Events) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	c := New(strings.NewReader(input), out, tokens, syncer, events, "http://localhost:8990/auth/google/login", logging.Discard())
	return c, out
}

func TestRunStopsOnEmptyLine(t *testing.T) {
	syncer := &fakeSyncer{}
	c, _ := newTestConsole("\nsync\n", &fakeTokens{}, syncer, &fakeEvents{})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if syncer.calls != 0 {
		t.Errorf("commands after the empty line ran: %d sync calls", syncer.calls)
	}
}

func TestRunStopsAtEOF(t *testing.T) {
	c, _ := newTestConsole("help", &fakeTokens{}, &fakeSyncer{}, &fakeEvents{})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := New(pr, io.Discard, &fakeTokens{}, &fakeSyncer{}, &fakeEvents{}, "", logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTokenCommandMasksSecrets(t *testing.T) {
	tokens := &fakeTokens{cred: &models.Credential{
		ID:           "cred-1",
		AccessToken:  "ya29.a0AfH6SMBx-very-secret-access-token",
		RefreshToken: "1//0g-very-secret-refresh-token",
		ExpiresIn:    3599,
		UpdatedAt:    time.Now(),
	}}
	c, out := newTestConsole("token\nquit\n", tokens, &fakeSyncer{}, &fakeEvents{})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "very-secret") {
		t.Errorf("output leaks a secret:\n%s", got)
	}
	if !strings.Contains(got, "cred-1") || !strings.Contains(got, "3599s") {
		t.Errorf("output missing credential fields:\n%s", got)
	}
}

func TestTokenCommandWithoutCredential(t *testing.T) {
	tokens := &fakeTokens{currentErr: token.ErrNoCredential}
	c, out := newTestConsole("token\nrefresh\nquit\n", tokens, &fakeSyncer{}, &fakeEvents{})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := strings.Count(out.String(), "/auth/google/login"); n != 2 {
		t.Errorf("login URL shown %d times, want 2:\n%s", n, out.String())
	}
	if tokens.refreshed != 0 {
		t.Errorf("refresh attempted without a credential")
	}
}

func TestRefreshCommand(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, "refreshed"},
		{"rejected", token.ErrRefreshRejected, "refresh failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &fakeTokens{
				cred:       &models.Credential{ID: "c", AccessToken: "old", RefreshToken: "r"},
				refreshErr: tt.err,
			}
			c, out := newTestConsole("refresh\n", tokens, &fakeSyncer{}, &fakeEvents{})
			if err := c.Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if tokens.refreshed != 1 {
				t.Errorf("refreshed %d times, want 1", tokens.refreshed)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want it to contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestSyncCommand(t *testing.T) {
	syncer := &fakeSyncer{res: reconcile.Result{Fetched: 3, Created: 1, Updated: 2}}
	c, out := newTestConsole("SYNC\n", &fakeTokens{}, syncer, &fakeEvents{})
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if syncer.calls != 1 {
		t.Fatalf("sync calls = %d, want 1", syncer.calls)
	}
	if !strings.Contains(out.String(), "fetched 3, created 1, updated 2") {
		t.Errorf("unexpected output: %q", out.String())
	}

	syncer = &fakeSyncer{err: errors.New("boom")}
	c, out = newTestConsole("sync\n", &fakeTokens{}, syncer, &fakeEvents{})
	c.Run(context.Background())
	if !strings.Contains(out.String(), "sync failed: boom") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestEventsCommand(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	events := &fakeEvents{events: []models.Event{
		{ID: "a", Summary: "Standup", StartAt: now.Add(time.Hour),
			Notification: models.Notification{EventID: "a", Enabled: true, LeadSeconds: 600}},
		{ID: "b", StartAt: now.Add(2 * time.Hour),
			Notification: models.Notification{EventID: "b", Enabled: false, LeadSeconds: 300}},
	}}
	c, out := newTestConsole("events\n", &fakeTokens{}, &fakeSyncer{}, events)
	c.now = func() time.Time { return now }
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if events.query.StartFrom == nil || !events.query.StartFrom.Equal(now) {
		t.Errorf("query StartFrom = %v, want %v", events.query.StartFrom, now)
	}
	got := out.String()
	for _, want := range []string{"Standup", "(no title)", "10m0s", "5m0s", "on", "off"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	c, out := newTestConsole("frobnicate\nlogin\n", &fakeTokens{}, &fakeSyncer{}, &fakeEvents{})
	c.Run(context.Background())
	if !strings.Contains(out.String(), `unknown command "frobnicate"`) {
		t.Errorf("unexpected output: %q", out.String())
	}
	if !strings.Contains(out.String(), "open http://localhost:8990/auth/google/login") {
		t.Errorf("login URL not printed: %q", out.String())
	}
}
