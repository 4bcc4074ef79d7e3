// Package metrics exposes Prometheus collectors for the trend service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequestsTotal         *prometheus.CounterVec
	refreshTotal               *prometheus.CounterVec
	signalFetchDurationSeconds *prometheus.HistogramVec
	signalFetchFailuresTotal   *prometheus.CounterVec
	trackedSkills              prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillpulse_cache_requests_total",
				Help: "Cache lookups, labeled by tier (fast/durable) and result (hit/miss/stale).",
			},
			[]string{"tier", "result"},
		)

		refreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillpulse_refresh_total",
				Help: "Full trend refreshes, labeled by result (ok/error).",
			},
			[]string{"result"},
		)

		signalFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skillpulse_signal_fetch_duration_seconds",
				Help:    "Duration of external signal fetches, labeled by source.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		)

		signalFetchFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillpulse_signal_fetch_failures_total",
				Help: "Signal fetches degraded to zero metrics, labeled by source.",
			},
			[]string{"source"},
		)

		trackedSkills = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "skillpulse_tracked_skills",
				Help: "Number of skills in the tracked catalog.",
			},
		)
	})
}

// CacheRequest records a cache lookup outcome for one tier.
func CacheRequest(tier, result string) {
	Init()
	cacheRequestsTotal.WithLabelValues(tier, result).Inc()
}

// Refresh records a completed refresh attempt.
func Refresh(result string) {
	Init()
	refreshTotal.WithLabelValues(result).Inc()
}

// SignalFetchTimer returns a timer observing into the fetch-duration
// histogram for the given source.
func SignalFetchTimer(source string) *prometheus.Timer {
	Init()
	return prometheus.NewTimer(signalFetchDurationSeconds.WithLabelValues(source))
}

// SignalFetchFailure records a fetch that degraded to zero metrics.
func SignalFetchFailure(source string) {
	Init()
	signalFetchFailuresTotal.WithLabelValues(source).Inc()
}

// SetTrackedSkills records the catalog size.
func SetTrackedSkills(n int) {
	Init()
	trackedSkills.Set(float64(n))
}
