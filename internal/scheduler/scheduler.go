// Package scheduler drives scrape cycles on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/service"
)

// CycleRunner executes one scrape cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler ticks at a fixed interval and runs one cycle per tick. Each
// cycle gets its own deadline so a hung upstream cannot wedge the loop; a
// tick firing while a cycle is still running is skipped, never queued.
type Scheduler struct {
	runner       CycleRunner
	log          *zap.Logger
	interval     time.Duration
	cycleTimeout time.Duration
}

// New creates a Scheduler.
func New(runner CycleRunner, interval, cycleTimeout time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runner:       runner,
		log:          log,
		interval:     interval,
		cycleTimeout: cycleTimeout,
	}
}

// Run blocks until ctx is cancelled. The first cycle starts immediately
// rather than waiting out a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Duration("interval", s.interval),
		zap.Duration("cycle_timeout", s.cycleTimeout),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	err := s.runner.RunCycle(cycleCtx)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrCycleInFlight):
		s.log.Debug("tick skipped, previous cycle still running")
	default:
		s.log.Error("scrape cycle failed", zap.Error(err))
	}
}
