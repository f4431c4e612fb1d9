// Package scheduler runs the periodic remote permit sync.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// SyncFunc performs one remote sync pass.
type SyncFunc func(ctx context.Context) error

// Scheduler invokes a sync function on a cron schedule. Failures are
// logged and left for the next tick; there are no internal retries.
type Scheduler struct {
	schedule string
	sync     SyncFunc
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// New creates a scheduler for the given cron expression.
func New(schedule string, sync SyncFunc) *Scheduler {
	return &Scheduler{
		schedule: schedule,
		sync:     sync,
	}
}

// Start begins the schedule. It fails if the expression is invalid or
// the scheduler is already running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	// A fresh cron per run; reusing one across Stop/Start would stack
	// duplicate entries.
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.runSync); err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.running = true

	slog.Info("sync scheduler started", "schedule", s.schedule)
	return nil
}

// Stop stops the scheduler. The returned context is done once any
// in-flight sync has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	slog.Info("stopping sync scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) runSync() {
	if err := s.sync(context.Background()); err != nil {
		slog.Warn("scheduled sync failed", "error", err)
		return
	}
	slog.Debug("scheduled sync completed")
}
