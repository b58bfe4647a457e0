// Package scheduler runs the periodic background jobs: sales feed
// refreshes and the lapsed-hold report.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one unit of periodic work.  The context carries the job timeout.
type Job func(ctx context.Context) error

// Scheduler wraps a UTC cron.  A run is skipped while the previous run of
// the same job is still going, and panics are recovered and logged.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{s: log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return &Scheduler{c: c, log: log}
}

// Add schedules job under spec (standard five-field cron or @every).
func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	if _, err := s.c.AddFunc(spec, func() { s.run(name, timeout, job) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.log.Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Warn("job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.log.Debug("job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.c.Entries()) }

func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and returns a context done once running jobs end.
func (s *Scheduler) Stop() context.Context { return s.c.Stop() }
