// Package cron runs a callback on a recurring schedule expressed as a
// standard cron spec (including the `@every` shorthand). The runtime uses
// it to drive the task tracker's bounded-retention eviction sweep.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field form plus descriptors like
// "@every 1m" and "@hourly".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Config holds the dependencies for a Scheduler.
type Config struct {
	Spec   string // cron expression, e.g. "@every 1m"
	Logger *slog.Logger
	Fire   func(ctx context.Context) // invoked each time the schedule is due
}

// Scheduler fires Fire each time Spec is due. It runs in a background
// goroutine and stops cleanly on Stop or context cancellation.
type Scheduler struct {
	sched  cronlib.Schedule
	logger *slog.Logger
	fire   func(ctx context.Context)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler parses spec and builds a Scheduler. An invalid spec returns
// an error rather than silently falling back - a broken eviction sweep
// should be visible at startup, not at 3am.
func NewScheduler(cfg Config) (*Scheduler, error) {
	sched, err := cronParser.Parse(cfg.Spec)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sched:  sched,
		logger: logger,
		fire:   cfg.Fire,
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", "next_run_at", s.sched.Next(time.Now()))
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	next := s.sched.Next(time.Now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.fire(ctx)
			next = s.sched.Next(time.Now())
			timer.Reset(time.Until(next))
		}
	}
}
