package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts requests hitting the resolve route
	RequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authproxy_requests_total",
		Help: "Total number of resolve requests received",
	})

	// CacheHitsTotal counts resolves served from a fresh cache entry
	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authproxy_cache_hits_total",
		Help: "Total number of resolves answered from the cache",
	})

	// CacheMissesTotal counts resolves that had to go upstream
	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authproxy_cache_misses_total",
		Help: "Total number of resolves with no fresh cache entry",
	})

	// UpstreamErrorsTotal counts failed upstream fetches by kind
	UpstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authproxy_upstream_errors_total",
		Help: "Total number of failed upstream fetches",
	}, []string{"kind"}) // "transport" or "status"

	// FetchDuration tracks upstream fetch latency
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "authproxy_upstream_fetch_duration_seconds",
		Help:    "Upstream fetch duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// MappingsTotal tracks the size of the mapping table
	MappingsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "authproxy_mappings_total",
		Help: "Current number of registered mappings",
	})

	// CacheEntries tracks the number of cached responses
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "authproxy_cache_entries",
		Help: "Current number of cached upstream responses",
	})
)

// RecordUpstreamError records a failed upstream fetch
func RecordUpstreamError(kind string) {
	UpstreamErrorsTotal.WithLabelValues(kind).Inc()
}
