package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pysugar/calendar-notice/internal/auth/google"
	"github.com/pysugar/calendar-notice/internal/auth/token"
	"github.com/pysugar/calendar-notice/internal/calendar"
	"github.com/pysugar/calendar-notice/internal/config"
	"github.com/pysugar/calendar-notice/internal/console"
	"github.com/pysugar/calendar-notice/internal/db"
	"github.com/pysugar/calendar-notice/internal/handlers"
	"github.com/pysugar/calendar-notice/internal/logging"
	"github.com/pysugar/calendar-notice/internal/notify"
	"github.com/pysugar/calendar-notice/internal/reconcile"
	"github.com/pysugar/calendar-notice/internal/runner"
	"github.com/pysugar/calendar-notice/internal/version"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

var errQuit = errors.New("console quit")

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil && !errors.Is(err, errQuit) {
		logger.Error("calnotice stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	logger.Info("starting", "version", version.Version, "listen", cfg.Listen, "db", cfg.DBPath)

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	credentials := db.NewCredentialStore(database)
	events := db.NewEventStore(database)

	oauthConfig, err := oauthConfig(cfg)
	if err != nil {
		return err
	}
	tokens := token.NewManager(credentials, oauthConfig,
		token.WithExpiryMargin(cfg.Sync.ExpiryMargin),
		token.WithLogger(logger))

	source := calendar.NewGoogleSource(calendar.Options{
		CalendarID: cfg.Google.CalendarID,
		Lookback:   cfg.Google.Lookback,
		Lookahead:  cfg.Google.Lookahead,
		MaxResults: cfg.Google.MaxResults,
	})
	syncer := reconcile.NewSyncer(tokens, source, events,
		reconcile.Defaults{LeadSeconds: cfg.Notify.LeadSeconds},
		cfg.LoginURL(), logger)
	scheduler := notify.NewScheduler(events, alerter(cfg, logger), cfg.Notify.Horizon, logger)

	jobs := runner.New(logger,
		runner.Job{
			Name:     "sync",
			Schedule: cfg.Sync.Schedule,
			Timeout:  cfg.Sync.Timeout,
			Run: func(ctx context.Context) error {
				_, err := syncer.RunOnce(ctx)
				return err
			},
		},
		runner.Job{
			Name:     "notify",
			Schedule: cfg.Notify.Schedule,
			Run: func(ctx context.Context) error {
				_, err := scheduler.Tick(ctx)
				return err
			},
		},
	)

	flow := google.NewFlow(oauthConfig, credentials, logger)
	router := handlers.NewRouter(handlers.Deps{
		Events:        events,
		Syncer:        syncer,
		Tokens:        tokens,
		Login:         flow.HandleLogin,
		Callback:      flow.HandleCallback,
		AdminPassword: cfg.AdminPassword,
		Metrics:       cfg.Metrics,
		Logger:        logger,
	})
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if _, err := tokens.Current(context.Background()); errors.Is(err, token.ErrNoCredential) {
		logger.Warn("no credential stored, authorize in a browser", "login_url", cfg.LoginURL())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "url", cfg.BaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return jobs.Run(ctx)
	})
	if cfg.Console {
		g.Go(func() error {
			c := console.New(os.Stdin, os.Stdout, tokens, syncer, events, cfg.LoginURL(), logger)
			if err := c.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return fmt.Errorf("console: %w", err)
			}
			logger.Info("console closed, shutting down")
			return errQuit
		})
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}

func oauthConfig(cfg config.Config) (*oauth2.Config, error) {
	if cfg.Google.SecretFile != "" {
		c, err := google.ConfigFromSecretFile(cfg.Google.SecretFile, cfg.RedirectURL())
		if err != nil {
			return nil, fmt.Errorf("load oauth client: %w", err)
		}
		return c, nil
	}
	return google.NewConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.RedirectURL()), nil
}

func alerter(cfg config.Config, logger *slog.Logger) notify.Alerter {
	logAlert := notify.LogAlerter{Logger: logger}
	if cfg.Notify.LogOnly {
		return logAlert
	}
	return notify.MultiAlerter{notify.NewCommandAlerter(cfg.Notify.Command), logAlert}
}
