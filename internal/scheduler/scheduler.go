// ABOUTME: Periodic task runner shared by the retention job and the selection cycle
// ABOUTME: Ticks serially so two runs of the same task can never overlap

package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs one task at a fixed interval. The first tick fires
// immediately, then on the ticker's fixed cadence. Ticks run inline in
// a single goroutine, so they never overlap; a tick that overruns the
// interval delays the next one, and intermediate ticks are dropped.
type Scheduler struct {
	name     string
	interval time.Duration
	tickFn   func(context.Context)
	logger   *slog.Logger
	done     chan struct{}
}

// New creates a scheduler for the named task.
func New(name string, interval time.Duration, tickFn func(context.Context)) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		tickFn:   tickFn,
		logger:   slog.Default().With("component", "scheduler", "task", name),
		done:     make(chan struct{}),
	}, nil
}

// Run executes the tick loop until the context is cancelled. Call it in
// its own goroutine; Wait blocks until the loop has fully stopped.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("task started", "interval", s.interval.String())

	s.safeTick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("task stopping")
			return
		case <-ticker.C:
			s.safeTick(ctx)
		}
	}
}

// Wait blocks until Run has returned.
func (s *Scheduler) Wait() {
	<-s.done
}

// safeTick runs one tick, containing panics so a bad tick cannot take
// down the scheduling loop.
func (s *Scheduler) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	s.logger.Debug("tick completed", "duration_ms", time.Since(start).Milliseconds())
}
