// Package console runs the foreground command loop on stdin.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pysugar/calendar-notice/internal/auth/token"
	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/db/models"
	"github.com/pysugar/calendar-notice/internal/logging"
	"github.com/pysugar/calendar-notice/internal/reconcile"
	"github.com/pysugar/calendar-notice/internal/util"
)

// Tokens is the credential manager as seen by the console.
type Tokens interface {
	Current(ctx context.Context) (*models.Credential, error)
	Refresh(ctx context.Context, c *models.Credential) (*models.Credential, error)
	IsExpired(c *models.Credential, now time.Time) bool
}

// Syncer runs one sync pass.
type Syncer interface {
	RunOnce(ctx context.Context) (reconcile.Result, error)
}

// Events lists stored events.
type Events interface {
	FindMany(ctx context.Context, q db.EventQuery) ([]models.Event, error)
}

const summaryWidth = 40

const helpText = `commands:
  token     show the stored credential
  refresh   refresh the access token now
  sync      run one sync pass
  events    list upcoming stored events
  login     print the authorization URL
  help      show this help
  quit      exit (an empty line also exits)
`

// Console reads commands line by line and writes results to out.
type Console struct {
	in       io.Reader
	out      io.Writer
	tokens   Tokens
	syncer   Syncer
	events   Events
	loginURL string
	logger   *slog.Logger
	now      func() time.Time
}

func New(in io.Reader, out io.Writer, tokens Tokens, syncer Syncer, events Events, loginURL string, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		in:       in,
		out:      out,
		tokens:   tokens,
		syncer:   syncer,
		events:   events,
		loginURL: loginURL,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until the user quits, input ends, or ctx is cancelled.
// It returns nil on quit and end of input.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	fmt.Fprint(c.out, "> ")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			cmd := strings.ToLower(strings.TrimSpace(line))
			if cmd == "" || cmd == "quit" || cmd == "exit" {
				return nil
			}
			c.exec(ctx, cmd)
			fmt.Fprint(c.out, "> ")
		}
	}
}

func (c *Console) exec(ctx context.Context, cmd string) {
	ctx = logging.StartCycle(ctx, "console")
	switch cmd {
	case "token":
		c.showToken(ctx)
	case "refresh":
		c.refresh(ctx)
	case "sync":
		c.sync(ctx)
	case "events":
		c.listEvents(ctx)
	case "login":
		fmt.Fprintf(c.out, "open %s to authorize\n", c.loginURL)
	case "help", "?":
		fmt.Fprint(c.out, helpText)
	default:
		fmt.Fprintf(c.out, "unknown command %q, type help\n", cmd)
	}
}

func (c *Console) current(ctx context.Context) (*models.Credential, bool) {
	cred, err := c.tokens.Current(ctx)
	if err != nil {
		if errors.Is(err, token.ErrNoCredential) {
			fmt.Fprintf(c.out, "no credential stored, open %s to log in\n", c.loginURL)
			return nil, false
		}
		fmt.Fprintf(c.out, "error: %v\n", err)
		return nil, false
	}
	return cred, true
}

func (c *Console) showToken(ctx context.Context) {
	cred, ok := c.current(ctx)
	if !ok {
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", cred.ID)
	fmt.Fprintf(tw, "access_token\t%s\n", token.Mask(cred.AccessToken))
	fmt.Fprintf(tw, "refresh_token\t%s\n", token.Mask(cred.RefreshToken))
	fmt.Fprintf(tw, "scope\t%s\n", cred.Scope)
	fmt.Fprintf(tw, "expires_in\t%ds\n", cred.ExpiresIn)
	fmt.Fprintf(tw, "updated_at\t%s\n", cred.UpdatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(tw, "expired\t%t\n", c.tokens.IsExpired(cred, c.now()))
	tw.Flush()
}

func (c *Console) refresh(ctx context.Context) {
	cred, ok := c.current(ctx)
	if !ok {
		return
	}
	updated, err := c.tokens.Refresh(ctx, cred)
	if err != nil {
		c.logger.WarnContext(ctx, "manual refresh failed", "error", err)
		fmt.Fprintf(c.out, "refresh failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "refreshed, access token %s valid for %ds\n", token.Mask(updated.AccessToken), updated.ExpiresIn)
}

func (c *Console) sync(ctx context.Context) {
	res, err := c.syncer.RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "sync failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "fetched %d, created %d, updated %d, skipped %d, failed %d\n",
		res.Fetched, res.Created, res.Updated, res.Skipped, res.Failed)
}

func (c *Console) listEvents(ctx context.Context) {
	from := c.now()
	events, err := c.events.FindMany(ctx, db.EventQuery{StartFrom: &from})
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	if len(events) == 0 {
		fmt.Fprintln(c.out, "no upcoming events")
		return
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tSUMMARY\tALERT\tLEAD")
	for _, ev := range events {
		alert := "off"
		if ev.Notification.Enabled {
			alert = "on"
		}
		summary := ev.Summary
		if summary == "" {
			summary = "(no title)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ev.StartAt.Local().Format("Mon 01-02 15:04"),
			util.Truncate(summary, summaryWidth),
			alert,
			time.Duration(ev.Notification.LeadSeconds)*time.Second)
	}
	tw.Flush()
}
