package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes used as label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics tracks reconciliation cycles.
type Metrics struct {
	Records        *prometheus.CounterVec
	Cycles         prometheus.Counter
	CycleErrors    prometheus.Counter
	RecordDuration prometheus.Histogram
	APILatency     *prometheus.HistogramVec
	Running        prometheus.Gauge
}

// New registers the engine metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Records: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pgfnsync_records_total",
			Help: "Records that reached a terminal state, by outcome and reason",
		}, []string{"outcome", "reason"}),
		Cycles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pgfnsync_cycles_total",
			Help: "Completed reconciliation cycles",
		}),
		CycleErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pgfnsync_cycle_errors_total",
			Help: "Reconciliation cycles that ended with an error",
		}),
		RecordDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pgfnsync_record_duration_seconds",
			Help:    "Time spent processing one deal",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		APILatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pgfnsync_api_latency_seconds",
			Help:    "Latency of downstream calls made while processing deals",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"upstream"}),
		Running: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pgfnsync_engine_running",
			Help: "1 while a run is active",
		}),
	}
}

func (m *Metrics) IncrementRecord(outcome, reason string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) IncrementCycle() {
	if m == nil {
		return
	}
	m.Cycles.Inc()
}

func (m *Metrics) IncrementCycleError() {
	if m == nil {
		return
	}
	m.CycleErrors.Inc()
}

func (m *Metrics) ObserveRecord(d time.Duration) {
	if m == nil {
		return
	}
	m.RecordDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveAPI(upstream string, d time.Duration) {
	if m == nil {
		return
	}
	m.APILatency.WithLabelValues(upstream).Observe(d.Seconds())
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}
