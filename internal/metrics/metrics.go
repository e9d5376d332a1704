package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sweep states exported by the SweepState gauge.
const (
	StateIdle = iota
	StateRunning
	StateCompleted
	StateAborted
)

// Metrics represents the collection of Prometheus metrics for a benchmark sweep.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	SweepState      prometheus.Gauge
	CurrentSize     prometheus.Gauge
	SizesCompleted  prometheus.Counter
	ProcessFailures *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the sweep metrics and registers them with reg.
// A nil reg uses a fresh private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{gatherer: reg}

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchmatrix_runs_total",
			Help: "Total number of benchmark runs by result label and outcome",
		},
		[]string{"label", "outcome"},
	)

	// Measured values span microseconds to minutes.
	m.RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "benchmatrix_run_duration_seconds",
			Help:    "Duration reported by the benchmark executable",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 9),
		},
		[]string{"label"},
	)

	m.SweepState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchmatrix_sweep_state",
			Help: "Harness state (0=idle, 1=running, 2=completed, 3=aborted)",
		},
	)

	m.CurrentSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchmatrix_current_input_size",
			Help: "Input size of the run in progress",
		},
	)

	m.SizesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "benchmatrix_sizes_completed_total",
			Help: "Number of input sizes finished across all targets",
		},
	)

	m.ProcessFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchmatrix_run_failures_total",
			Help: "Failed benchmark runs by reason",
		},
		[]string{"reason"},
	)

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SweepState,
		m.CurrentSize,
		m.SizesCompleted,
		m.ProcessFailures,
	)

	return m
}

// ObserveRun records a successful run.
func (m *Metrics) ObserveRun(label string, seconds float64) {
	m.RunsTotal.WithLabelValues(label, "ok").Inc()
	m.RunDuration.WithLabelValues(label).Observe(seconds)
}

// ObserveFailure records a run that left a gap.
func (m *Metrics) ObserveFailure(label, reason string) {
	m.RunsTotal.WithLabelValues(label, "failed").Inc()
	m.ProcessFailures.WithLabelValues(reason).Inc()
}

// SetState exports the harness state.
func (m *Metrics) SetState(state int) {
	m.SweepState.Set(float64(state))
}

// Handler returns the Prometheus HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
