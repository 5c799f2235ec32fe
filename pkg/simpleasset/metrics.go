package simpleasset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "simple_asset"

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	submitted      prometheus.Counter
	ingestFailures prometheus.Counter
	reconciled     *prometheus.CounterVec
	attempts       prometheus.Counter
	persistErrors  prometheus.Counter
	uploadSeconds  prometheus.Histogram
	breakerState   prometheus.Gauge
	inflight       prometheus.Gauge
	stalePending   prometheus.Gauge
}

// NewMetrics registers the pipeline collectors with reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submitted_total",
			Help:      "Assets accepted and persisted as PENDING.",
		}),
		ingestFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_failures_total",
			Help:      "Submissions rejected because the PENDING write failed.",
		}),
		reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconciled_total",
			Help:      "Assets moved to a terminal status, by status.",
		}, []string{"status"}),
		attempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "storage_attempts_total",
			Help:      "Individual storage upload attempts.",
		}),
		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconcile_persist_errors_total",
			Help:      "Terminal writes that failed and left the asset PENDING.",
		}),
		uploadSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "storage_upload_seconds",
			Help:      "Duration of the full storage call including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		breakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_breaker_state",
			Help:      "Storage circuit breaker state (0 closed, 1 open, 2 half-open).",
		}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dispatcher_inflight",
			Help:      "Background tasks currently running.",
		}),
		stalePending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stale_pending_assets",
			Help:      "PENDING assets older than the staleness threshold at the last check.",
		}),
	}
}

func (m *Metrics) incSubmitted() {
	if m != nil {
		m.submitted.Inc()
	}
}

func (m *Metrics) incIngestFailure() {
	if m != nil {
		m.ingestFailures.Inc()
	}
}

func (m *Metrics) incReconciled(status AssetStatus) {
	if m != nil {
		m.reconciled.WithLabelValues(string(status)).Inc()
	}
}

func (m *Metrics) incAttempt() {
	if m != nil {
		m.attempts.Inc()
	}
}

func (m *Metrics) incPersistError() {
	if m != nil {
		m.persistErrors.Inc()
	}
}

func (m *Metrics) observeUpload(seconds float64) {
	if m != nil {
		m.uploadSeconds.Observe(seconds)
	}
}

// SetBreakerState records the numeric breaker state.
func (m *Metrics) SetBreakerState(state int) {
	if m != nil {
		m.breakerState.Set(float64(state))
	}
}

func (m *Metrics) addInflight(delta float64) {
	if m != nil {
		m.inflight.Add(delta)
	}
}

// SetStalePending records the number of stale PENDING assets.
func (m *Metrics) SetStalePending(n int) {
	if m != nil {
		m.stalePending.Set(float64(n))
	}
}
