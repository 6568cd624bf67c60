// Package metrics exposes Prometheus instrumentation for the notifier.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CycleCount counts scrape cycles by outcome (success, fetch_error,
	// store_error, skipped).
	CycleCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchwatch_cycles_total",
			Help: "Total number of scrape cycles by outcome",
		},
		[]string{"outcome"},
	)

	// CycleDuration measures full cycle wall time.
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchwatch_cycle_duration_seconds",
			Help:    "Duration of complete scrape cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	// MatchesUpserted counts records written to the store per cycle.
	MatchesUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchwatch_matches_upserted_total",
			Help: "Total match records upserted into the store",
		},
	)

	// NotificationCount counts delivery attempts by outcome (sent, failed).
	NotificationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchwatch_notifications_total",
			Help: "Number of match notifications by delivery outcome",
		},
		[]string{"outcome"},
	)

	// RateLimitWait measures time spent waiting for a send permit.
	RateLimitWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchwatch_rate_limit_wait_seconds",
			Help:    "Time spent waiting on the outbound rate limiter",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init() {
	prometheus.MustRegister(CycleCount, CycleDuration, MatchesUpserted, NotificationCount, RateLimitWait)
}
