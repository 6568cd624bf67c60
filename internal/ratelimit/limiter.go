// Package ratelimit provides a sliding-window throttle for outbound sends.
package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow grants at most burst permits within any trailing window.
// Acquire blocks until a permit is available. The check and the grant
// recording happen as one step under the same lock, so two concurrent
// callers can never both observe spare capacity and both proceed.
type SlidingWindow struct {
	sem    chan struct{}
	burst  int
	window time.Duration
	now    func() time.Time

	grants []time.Time
}

// New creates a SlidingWindow limiter allowing burst grants per window.
func New(burst int, window time.Duration) *SlidingWindow {
	if burst <= 0 {
		burst = 1
	}
	if window <= 0 {
		window = time.Second
	}
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return &SlidingWindow{
		sem:    sem,
		burst:  burst,
		window: window,
		now:    time.Now,
		grants: make([]time.Time, 0, burst),
	}
}

// Acquire blocks until a permit is granted or ctx is done. The wait after a
// full window is oldest_grant + window - now; the window is re-evaluated on
// every wake because a slow waiter can find it refilled by the time it runs.
func (l *SlidingWindow) Acquire(ctx context.Context) error {
	for {
		select {
		case <-l.sem:
		case <-ctx.Done():
			return ctx.Err()
		}

		now := l.now()
		l.prune(now)

		if len(l.grants) < l.burst {
			l.grants = append(l.grants, now)
			l.sem <- struct{}{}
			return nil
		}

		wait := l.grants[0].Add(l.window).Sub(now)
		l.sem <- struct{}{}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// prune drops grant timestamps older than the trailing window. Callers must
// hold the semaphore.
func (l *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.grants) && !l.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.grants = append(l.grants[:0], l.grants[i:]...)
	}
}
