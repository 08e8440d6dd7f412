package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// ClientMetrics tracks the automation side of registry lookups.
type ClientMetrics struct {
	LookupDuration *prometheus.HistogramVec
	Retries        prometheus.Counter
	BreakerState   prometheus.Gauge
}

// NewClient registers the lookup client metrics.
func NewClient() *ClientMetrics {
	return &ClientMetrics{
		LookupDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pgfnsync_registry_lookup_duration_seconds",
			Help:    "Duration of registry lookups including retries, by outcome",
			Buckets: latencyBuckets,
		}, []string{"outcome"}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pgfnsync_registry_lookup_retries_total",
			Help: "Total number of retried registry lookup attempts",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pgfnsync_registry_breaker_open",
			Help: "1 while the registry circuit breaker is open, 0.5 half-open, 0 closed",
		}),
	}
}

// ObserveLookup records a finished lookup. Call with time.Now() at the start of the lookup.
func (m *ClientMetrics) ObserveLookup(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.LookupDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (m *ClientMetrics) IncrementRetries() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// SetBreakerState records the breaker position as 0 (closed), 0.5 (half-open) or 1 (open).
func (m *ClientMetrics) SetBreakerState(v float64) {
	if m == nil {
		return
	}
	m.BreakerState.Set(v)
}

// APIMetrics tracks the lookup service.
type APIMetrics struct {
	Requests      *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
}

// NewAPI registers the lookup service metrics.
func NewAPI() *APIMetrics {
	return &APIMetrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pgfnsync_registry_api_requests_total",
			Help: "Total lookup service requests by endpoint and status class",
		}, []string{"endpoint", "status"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pgfnsync_registry_api_query_duration_seconds",
			Help:    "Duration of the tax-debt aggregation query",
			Buckets: latencyBuckets,
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pgfnsync_registry_api_cache_hits_total",
			Help: "Total lookups served from cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pgfnsync_registry_api_cache_misses_total",
			Help: "Total lookups that missed the cache",
		}),
	}
}

func (m *APIMetrics) IncrementRequest(endpoint, status string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(endpoint, status).Inc()
}

// ObserveQuery records the aggregation query duration. Call with time.Now() at the start.
func (m *APIMetrics) ObserveQuery(start time.Time) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(time.Since(start).Seconds())
}

func (m *APIMetrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *APIMetrics) IncrementCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
