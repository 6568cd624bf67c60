// Package service contains the dedup and notification engine and its
// supporting collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db/models"
	"github.com/matchwatch/vlr-results-notifier-go/internal/db/repository"
	"github.com/matchwatch/vlr-results-notifier-go/internal/metrics"
	"github.com/matchwatch/vlr-results-notifier-go/internal/mirror"
	"github.com/matchwatch/vlr-results-notifier-go/internal/notify"
	"github.com/matchwatch/vlr-results-notifier-go/internal/scraper"
	"github.com/matchwatch/vlr-results-notifier-go/internal/validation"
)

// ErrCycleInFlight is returned when RunCycle is called while a previous
// cycle is still running. The scheduler treats it as "skip this tick".
var ErrCycleInFlight = errors.New("scrape cycle already in flight")

// Limiter grants outbound send permits.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// EventPublisher broadcasts completed-match events to downstream consumers.
// Publishing is best-effort; the engine never fails a cycle over it.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, match *models.Match) error
}

// EngineOptions collects the engine's collaborators. Scraper, Repo, Sink and
// Limiter are required; Mirror and Publisher are optional.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type EngineOptions struct {
	Scraper       scraper.Scraper
	Repo          repository.MatchRepository
	Sink          notify.Sink
	Limiter       Limiter
	Mirror        mirror.Mirror
	Publisher     EventPublisher
	Normalizer    *validation.Normalizer
	Logger        *zap.Logger
	RecencyWindow time.Duration
	MirrorTimeout time.Duration
}

// Engine runs the per-cycle state machine: fetch, upsert, query candidates,
// deliver through the rate limiter, then mark delivered ids notified in one
// store call. MarkNotified is the commit point: a crash after delivery but
// before the mark re-delivers on the next cycle, so the contract is
// at-least-once, never silent loss.
type Engine struct {
	opts EngineOptions
	log  *zap.Logger
	now  func() time.Time

	// single-flight guard; cycles never overlap
	mu sync.Mutex
}

// NewEngine creates an Engine from its collaborators.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Normalizer == nil {
		opts.Normalizer = validation.NewNormalizer(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RecencyWindow <= 0 {
		opts.RecencyWindow = 24 * time.Hour
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = 30 * time.Second
	}
	return &Engine{
		opts: opts,
		log:  opts.Logger,
		now:  time.Now,
	}
}

// RunCycle executes one scrape cycle. It returns ErrCycleInFlight without
// doing any work when a cycle is already running. Any other error means the
// cycle was abandoned partway; committed state is intact and the next tick
// retries.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.mu.TryLock() {
		metrics.CycleCount.WithLabelValues("skipped").Inc()
		return ErrCycleInFlight
	}
	defer e.mu.Unlock()

	cycleID := uuid.NewString()
	log := e.log.With(zap.String("cycle_id", cycleID))
	start := time.Now()

	log.Info("scrape cycle started")

	raws, err := e.opts.Scraper.Fetch(ctx)
	if err != nil {
		metrics.CycleCount.WithLabelValues("fetch_error").Inc()
		return fmt.Errorf("fetch matches: %w", err)
	}

	matches := e.normalize(log, raws)

	if err := e.opts.Repo.UpsertBatch(ctx, matches); err != nil {
		metrics.CycleCount.WithLabelValues("store_error").Inc()
		return fmt.Errorf("upsert matches: %w", err)
	}
	metrics.MatchesUpserted.Add(float64(len(matches)))

	e.pushMirror(log, matches)

	now := e.now()
	candidates, err := e.opts.Repo.ListNotificationCandidates(ctx, now, e.opts.RecencyWindow)
	if err != nil {
		metrics.CycleCount.WithLabelValues("store_error").Inc()
		return fmt.Errorf("list candidates: %w", err)
	}

	if unparsed, err := e.opts.Repo.CountUnparsedTerminal(ctx); err == nil && unparsed > 0 {
		log.Warn("completed matches excluded from notification: start time never parsed",
			zap.Int64("count", unparsed),
		)
	}

	delivered := e.deliver(ctx, log, candidates)

	// The commit must survive a cycle deadline hit mid-delivery; an expired
	// ctx here would leave delivered ids unmarked and re-send them next
	// cycle.
	changed, err := e.opts.Repo.MarkNotified(context.WithoutCancel(ctx), delivered)
	if err != nil {
		// Delivery happened but the commit failed: the records stay
		// unnotified and will be re-sent next cycle (at-least-once).
		metrics.CycleCount.WithLabelValues("store_error").Inc()
		return fmt.Errorf("mark notified: %w", err)
	}

	metrics.CycleCount.WithLabelValues("success").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	log.Info("scrape cycle completed",
		zap.Int("scraped", len(raws)),
		zap.Int("upserted", len(matches)),
		zap.Int("candidates", len(candidates)),
		zap.Int("delivered", len(delivered)),
		zap.Int64("marked", changed),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

// normalize converts raw tuples, dropping rows with unusable ids.
func (e *Engine) normalize(log *zap.Logger, raws []scraper.RawMatch) []*models.Match {
	matches := make([]*models.Match, 0, len(raws))
	for _, raw := range raws {
		match, err := e.opts.Normalizer.Normalize(raw)
		if err != nil {
			log.Warn("skipping unusable scrape row", zap.Error(err))
			continue
		}
		matches = append(matches, match)
	}
	return matches
}

// pushMirror forwards the snapshot without blocking the cycle. The goroutine
// gets its own deadline: the cycle context may be gone before a slow mirror
// endpoint answers.
func (e *Engine) pushMirror(log *zap.Logger, matches []*models.Match) {
	if e.opts.Mirror == nil || len(matches) == 0 {
		return
	}

	snapshot := make([]*models.Match, len(matches))
	copy(snapshot, matches)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.MirrorTimeout)
		defer cancel()

		if err := e.opts.Mirror.Push(ctx, snapshot); err != nil {
			log.Warn("mirror push failed", zap.Error(err))
		}
	}()
}

// deliver sends each candidate through the rate limiter. One candidate's
// failure never blocks the rest; only confirmed sends end up in the returned
// id set.
func (e *Engine) deliver(ctx context.Context, log *zap.Logger, candidates []*models.Match) []string {
	delivered := make([]string, 0, len(candidates))

	for _, match := range candidates {
		waitStart := time.Now()
		if err := e.opts.Limiter.Acquire(ctx); err != nil {
			log.Warn("rate limit wait aborted, remaining candidates deferred to next cycle",
				zap.Error(err),
				zap.Int("remaining", len(candidates)-len(delivered)),
			)
			break
		}
		metrics.RateLimitWait.Observe(time.Since(waitStart).Seconds())

		if err := e.opts.Sink.Send(ctx, match); err != nil {
			metrics.NotificationCount.WithLabelValues("failed").Inc()
			log.Error("notification delivery failed",
				zap.String("match_id", match.ID),
				zap.Error(err),
			)
			continue
		}

		metrics.NotificationCount.WithLabelValues("sent").Inc()
		delivered = append(delivered, match.ID)

		log.Info("match notification delivered",
			zap.String("match_id", match.ID),
			zap.String("teams", match.TeamA+" vs "+match.TeamB),
		)

		if e.opts.Publisher != nil {
			if err := e.opts.Publisher.PublishCompleted(ctx, match); err != nil {
				log.Warn("match event publish failed",
					zap.String("match_id", match.ID),
					zap.Error(err),
				)
			}
		}
	}

	return delivered
}

// InFlight reports whether a cycle is currently running.
func (e *Engine) InFlight() bool {
	if e.mu.TryLock() {
		e.mu.Unlock()
		return false
	}
	return true
}
