package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of broker events consumed",
		},
		[]string{"routing_key"},
	)
	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total number of events processed by final outcome",
		},
		[]string{"routing_key", "outcome"},
	)
	EventRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_retries_total",
			Help: "Total number of extra handler attempts past the first",
		},
		[]string{"routing_key"},
	)
	ScoreComputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "score_compute_duration_seconds",
			Help:    "Rule-based score computation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
	)
	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_cache_invalidations_total",
			Help: "Total number of score cache purges by entity",
		},
		[]string{"entity"},
	)
	AlertsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_alerts_published_total",
			Help: "Total number of match alerts published",
		},
	)
	AlertsDedupedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_alerts_deduped_total",
			Help: "Total number of match alerts suppressed by the dedupe window",
		},
	)
	AlertPublishFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "match_alert_publish_failures_total",
			Help: "Total number of match alert publish failures",
		},
	)
)

// InitMetrics registers all application metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(EventsConsumedTotal)
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(EventRetriesTotal)
	prometheus.MustRegister(ScoreComputeDuration)
	prometheus.MustRegister(CacheInvalidationsTotal)
	prometheus.MustRegister(AlertsPublishedTotal)
	prometheus.MustRegister(AlertsDedupedTotal)
	prometheus.MustRegister(AlertPublishFailuresTotal)
}
