// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Requests currently being served",
		},
	)

	EventsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_collected_total",
			Help: "Events persisted through the collect endpoint",
		},
		[]string{"device"},
	)

	// CacheOps counts cache lookups by query kind ("event_summary", "user_stats") and result ("hit", "miss", "unavailable").
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_operations_total",
			Help: "Aggregate cache lookups by result",
		},
		[]string{"query", "result"},
	)

	CacheInvalidationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_cache_invalidation_errors_total",
			Help: "Failed best-effort cache invalidations after ingestion",
		},
	)

	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analytics_cache_breaker_state",
			Help: "Cache circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	// AuthFailures counts rejected credentials by scheme ("api_key", "session") and internal reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Rejected authentication attempts",
		},
		[]string{"scheme", "reason"},
	)

	APIKeyLifecycle = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_key_lifecycle_total",
			Help: "API key lifecycle operations",
		},
		[]string{"action"},
	)
)

// RecordHTTPRequest observes a finished request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
		return
	}
	HTTPActiveRequests.Dec()
}

// RecordCacheLookup counts one cache lookup for query with the given result.
func RecordCacheLookup(query, result string) {
	CacheOps.WithLabelValues(query, result).Inc()
}

// RecordAuthFailure counts a rejected credential.
func RecordAuthFailure(scheme, reason string) {
	AuthFailures.WithLabelValues(scheme, reason).Inc()
}
