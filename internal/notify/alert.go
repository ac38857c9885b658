package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/util"
)

const (
	appName       = "calendar-notice"
	maxSummaryLen = 80
)

// Message renders the title and body shown for ev.
func Message(ev models.Event) (title, body string) {
	title = util.Truncate(strings.TrimSpace(ev.Summary), maxSummaryLen)
	if title == "" {
		title = "(no title)"
	}

	lines := []string{"Starts at " + ev.StartAt.Local().Format("15:04")}
	for _, link := range []string{ev.ZoomLink, ev.TeamsLink, ev.HangoutLink} {
		if link != "" {
			lines = append(lines, link)
		}
	}
	return title, strings.Join(lines, "\n")
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandAlerter shows a desktop notification by running an external command.
type CommandAlerter struct {
	name      string
	args      []string
	osascript bool
	timeout   time.Duration
	run       runFunc
}

// NewCommandAlerter runs command with the title and body appended as the last
// two arguments. An empty command picks the platform default: osascript on
// macOS and notify-send elsewhere.
func NewCommandAlerter(command []string) *CommandAlerter {
	a := &CommandAlerter{timeout: 10 * time.Second, run: runCommand}
	switch {
	case len(command) > 0:
		a.name, a.args = command[0], command[1:]
	case runtime.GOOS == "darwin":
		a.name, a.osascript = "osascript", true
	default:
		a.name, a.args = "notify-send", []string{"--app-name=" + appName}
	}
	return a
}

func (a *CommandAlerter) Notify(ctx context.Context, ev models.Event) error {
	title, body := Message(ev)

	var args []string
	if a.osascript {
		args = []string{"-e", appleScript(title, body)}
	} else {
		args = append(append([]string{}, a.args...), title, body)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if out, err := a.run(ctx, a.name, args...); err != nil {
		return fmt.Errorf("%s: %w: %s", a.name, err, util.TruncateBytes(out))
	}
	return nil
}

func appleScript(title, body string) string {
	return fmt.Sprintf("display notification %s with title %s subtitle %s sound name \"Glass\"",
		quoteAppleScript(body), quoteAppleScript(appName), quoteAppleScript(title))
}

func quoteAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// LogAlerter writes the alert to the log. Useful on headless hosts.
type LogAlerter struct {
	Logger *slog.Logger
}

func (a LogAlerter) Notify(ctx context.Context, ev models.Event) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	title, body := Message(ev)
	logger.InfoContext(ctx, "ALERT "+title, "event_id", ev.ID, "details", body)
	return nil
}

// MultiAlerter sends every alert to all of its members.
type MultiAlerter []Alerter

func (m MultiAlerter) Notify(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, a := range m {
		if err := a.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
