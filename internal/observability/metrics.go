// Package observability provides Prometheus metrics for one backtest
// engine run. Metrics are instanced rather than package-level
// singletons: a long-lived process running many runs (CLI invocations,
// optimizer sweeps) must not share counters across them, and a
// singleton registered against the default prometheus.Registry cannot
// be constructed twice in the same test binary.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds one run's Prometheus instruments, registered against a
// private registry so multiple Metrics instances can coexist in one
// process.
type Metrics struct {
	registry *prometheus.Registry

	CallsReplayed    *prometheus.CounterVec // by exit_reason
	ReplayLatency    prometheus.Histogram
	DiagnosticsTotal *prometheus.CounterVec // by kind

	WorkerPoolInFlight prometheus.Gauge

	StoreQueryLatency *prometheus.HistogramVec
	StoreQueryErrors  *prometheus.CounterVec

	OptimizerTuplesEvaluated prometheus.Counter
	OptimizerTuplesFeasible  prometheus.Counter

	RunDuration prometheus.Histogram
	RunsTotal   *prometheus.CounterVec // by status
}

// New creates a Metrics instance scoped to namespace ("backtest_engine"
// if empty), registered against its own private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "backtest_engine"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CallsReplayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "calls_replayed_total",
			Help:      "Total number of calls replayed, by exit reason",
		}, []string{"exit_reason"}),
		ReplayLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "call_latency_seconds",
			Help:      "Per-call replay latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		DiagnosticsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "diagnostics_total",
			Help:      "Total number of calls excluded from a run, by error kind",
		}, []string{"kind"}),

		WorkerPoolInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "worker_pool_in_flight",
			Help:      "Current number of in-flight replay goroutines",
		}),

		StoreQueryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Candle/alert store query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		StoreQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Total number of store query errors",
		}, []string{"store", "operation"}),

		OptimizerTuplesEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "tuples_evaluated_total",
			Help:      "Total number of parameter tuples evaluated",
		}),
		OptimizerTuplesFeasible: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "tuples_feasible_total",
			Help:      "Total number of parameter tuples satisfying feasibility constraints",
		}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Full run wall-clock duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of runs, by terminal status",
		}, []string{"status"}),
	}
}

// Handler returns an HTTP handler serving m's registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCallReplayed increments the per-exit-reason replay counter and
// observes its latency.
func (m *Metrics) RecordCallReplayed(exitReason string, elapsed time.Duration) {
	m.CallsReplayed.WithLabelValues(exitReason).Inc()
	m.ReplayLatency.Observe(elapsed.Seconds())
}

// RecordDiagnostic increments the exclusion counter for an error kind.
func (m *Metrics) RecordDiagnostic(kind string) {
	m.DiagnosticsTotal.WithLabelValues(kind).Inc()
}

// SetWorkerPoolInFlight sets the current in-flight replay count.
func (m *Metrics) SetWorkerPoolInFlight(n int) {
	m.WorkerPoolInFlight.Set(float64(n))
}

// ObserveStoreQuery records a store query's latency and, if err is
// non-nil, increments its error counter.
func (m *Metrics) ObserveStoreQuery(store, operation string, elapsed time.Duration, err error) {
	m.StoreQueryLatency.WithLabelValues(store, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.StoreQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordOptimizerTuple increments the tuples-evaluated counter and, if
// feasible, the tuples-feasible counter.
func (m *Metrics) RecordOptimizerTuple(feasible bool) {
	m.OptimizerTuplesEvaluated.Inc()
	if feasible {
		m.OptimizerTuplesFeasible.Inc()
	}
}

// RecordRun observes a completed run's duration and terminal status.
func (m *Metrics) RecordRun(status string, elapsed time.Duration) {
	m.RunDuration.Observe(elapsed.Seconds())
	m.RunsTotal.WithLabelValues(status).Inc()
}
