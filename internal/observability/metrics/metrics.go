package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetrack_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetrack_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetrack_query_cache_lookups_total",
		Help: "Query cache lookups by outcome (hit, stale, miss)",
	}, []string{"entity", "outcome"})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "timetrack_query_cache_evictions_total",
		Help: "Cache entries evicted after the idle window",
	})

	cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetrack_query_cache_invalidations_total",
		Help: "Cache entries invalidated by entity namespace",
	}, []string{"entity"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "timetrack_store_operation_duration_seconds",
		Help:    "Duration of remote document store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "result"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetrack_workflow_transitions_total",
		Help: "Workflow transitions by operation and result",
	}, []string{"operation", "result"})

	pendingApprovals = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timetrack_entries_awaiting_approval",
		Help: "Entries currently awaiting manager approval (logical state)",
	})

	statsRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "timetrack_stats_recomputes_total",
		Help: "UserStats recompute runs by source and result",
	}, []string{"source", "result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache lookup outcome for an entity namespace.
func ObserveCacheLookup(entity, outcome string) {
	cacheLookups.WithLabelValues(entity, outcome).Inc()
}

// ObserveCacheEvictions adds idle-window evictions to the counter.
func ObserveCacheEvictions(n int) {
	if n > 0 {
		cacheEvictions.Add(float64(n))
	}
}

// ObserveCacheInvalidation records invalidated entries for an entity namespace.
func ObserveCacheInvalidation(entity string, n int) {
	if n > 0 {
		cacheInvalidations.WithLabelValues(entity).Add(float64(n))
	}
}

// ObserveStoreOperation records the duration of a document store call.
func ObserveStoreOperation(operation, result string, duration time.Duration) {
	storeOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// ObserveTransition records a workflow transition attempt with its result.
func ObserveTransition(operation, result string) {
	transitionsTotal.WithLabelValues(operation, result).Inc()
}

// SetPendingApprovals sets the awaiting-approval gauge.
func SetPendingApprovals(count int) {
	if count < 0 {
		count = 0
	}
	pendingApprovals.Set(float64(count))
}

// ObserveStatsRecompute increments the recompute counter for the given source and result.
func ObserveStatsRecompute(source, result string) {
	statsRecomputes.WithLabelValues(source, result).Inc()
}
