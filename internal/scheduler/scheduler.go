// Package scheduler runs periodic maintenance jobs on cron schedules. RegFlow uses it to
// sweep abandoned registration sessions out of the store.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSpec runs the stale-session sweep every ten minutes.
const DefaultSweepSpec = "@every 10m"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// standard 5-field cron plus @every/@hourly descriptors; panics in jobs are recovered
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Expirer removes sessions idle for longer than olderThan.
type Expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Sweep runs one stale-session sweep.
func Sweep(ctx context.Context, e Expirer, ttl time.Duration) (int, error) {
	n, err := e.ExpireStale(ctx, ttl)
	if err != nil {
		slog.Error("scheduler.Sweep: sweep failed", "error", err)
		return 0, err
	}
	slog.Debug("scheduler.Sweep: sweep finished", "removed", n, "ttl", ttl)
	return n, nil
}

// ScheduleSweep registers a job on spec that expires sessions idle longer than ttl.
// Jobs run with ctx; a cancelled ctx turns them into no-ops.
func (s *Scheduler) ScheduleSweep(ctx context.Context, spec string, ttl time.Duration, e Expirer) error {
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if err := s.AddJob(spec, func() {
		if ctx.Err() != nil {
			return
		}
		Sweep(ctx, e, ttl)
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	slog.Info("Scheduler.ScheduleSweep: stale-session sweep scheduled", "spec", spec, "ttl", ttl)
	return nil
}
