package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/matchwatch/vlr-results-notifier-go/internal/service"
)

type countingRunner struct {
	calls atomic.Int64
	err   error
	block time.Duration
}

func (r *countingRunner) RunCycle(ctx context.Context) error {
	r.calls.Add(1)
	if r.block > 0 {
		select {
		case <-time.After(r.block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return r.err
}

func TestRun_InitialCycleIsImmediate(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.Hour, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Interval is an hour, so any call must come from the initial run.
	assert.Eventually(t, func() bool {
		return runner.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRun_TicksRepeatedly(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, 20*time.Millisecond, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRun_CycleErrorsDoNotStopLoop(t *testing.T) {
	runner := &countingRunner{err: errors.New("fetch failed")}
	s := New(runner, 20*time.Millisecond, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRun_InFlightSkipIsSilent(t *testing.T) {
	runner := &countingRunner{err: service.ErrCycleInFlight}
	s := New(runner, 20*time.Millisecond, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRun_CycleTimeoutCancelsRunner(t *testing.T) {
	runner := &countingRunner{block: time.Hour}
	s := New(runner, time.Hour, 30*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	s.runOnce(ctx)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(1), runner.calls.Load())
}
