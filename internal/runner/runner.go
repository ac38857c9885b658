// Package runner drives the periodic sync and notification loops.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pysugar/calendar-notice/internal/logging"
	"github.com/robfig/cron/v3"
)

// Job is one periodic task.
type Job struct {
	Name     string
	Schedule string // cron spec or descriptor such as "@every 30s"
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Runner runs jobs on their schedules until its context is cancelled.
// Each job also runs once immediately, and never overlaps with itself.
type Runner struct {
	jobs   []Job
	logger *slog.Logger
}

func New(logger *slog.Logger, jobs ...Job) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{jobs: jobs, logger: logger}
}

// Run blocks until ctx is cancelled, then waits for in-flight cycles to finish.
// Cycles are not interrupted by the cancellation.
func (r *Runner) Run(ctx context.Context) error {
	cl := cronLogger{r.logger}
	c := cron.New(cron.WithLogger(cl))

	type prepared struct {
		name string
		job  cron.Job
	}
	var jobs []prepared
	for _, j := range r.jobs {
		sched, err := cron.ParseStandard(j.Schedule)
		if err != nil {
			return fmt.Errorf("job %s: bad schedule %q: %w", j.Name, j.Schedule, err)
		}
		// One chain per job so the start-up run and scheduled runs share
		// the same skip-if-running guard.
		wrapped := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(r.cycle(ctx, j))
		c.Schedule(sched, wrapped)
		jobs = append(jobs, prepared{name: j.Name, job: wrapped})
	}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(job cron.Job) {
			defer wg.Done()
			job.Run()
		}(j.job)
	}

	c.Start()
	r.logger.InfoContext(ctx, "loops started", "jobs", len(jobs))

	<-ctx.Done()
	r.logger.Info("stopping loops, waiting for running cycles")
	<-c.Stop().Done()
	wg.Wait()
	r.logger.Info("loops stopped")
	return nil
}

func (r *Runner) cycle(parent context.Context, j Job) cron.FuncJob {
	return func() {
		ctx := logging.StartCycle(context.WithoutCancel(parent), j.Name)
		if j.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, j.Timeout)
			defer cancel()
		}
		start := time.Now()
		if err := j.Run(ctx); err != nil {
			r.logger.WarnContext(ctx, "cycle failed", "error", err, "duration", time.Since(start))
			return
		}
		r.logger.DebugContext(ctx, "cycle done", "duration", time.Since(start))
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
