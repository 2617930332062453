// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atelier"

// Metrics holds all collectors registered by the engine
type Metrics struct {
	registry *prometheus.Registry

	Transitions     *prometheus.CounterVec
	MatchAttempts   *prometheus.CounterVec
	Payments        *prometheus.CounterVec
	Effects         *prometheus.CounterVec
	WorkerStats     *prometheus.CounterVec
	OperationErrors *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	MatchDuration   prometheus.Histogram
	JobRuns         *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
}

// New creates collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "project_transitions_total",
			Help:      "Project status transitions by event and target status.",
		}, []string{"event", "to"}),
		MatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_attempts_total",
			Help:      "Matching attempts by outcome.",
		}, []string{"skill", "outcome"}),
		Payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment confirmations by phase and outcome.",
		}, []string{"phase", "outcome"}),
		Effects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effects_total",
			Help:      "Side-effect deliveries by type and outcome.",
		}, []string{"type", "outcome"}),
		WorkerStats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_stats_total",
			Help:      "Worker-level counters (assigned, declined, completed).",
		}, []string{"worker_id", "stat"}),
		OperationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Orchestrator operation failures by operation and error kind.",
		}, []string{"operation", "kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		MatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Time spent ranking and claiming a candidate.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Background job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_run_duration_seconds",
			Help:      "Background job run time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.Transitions, m.MatchAttempts, m.Payments, m.Effects, m.WorkerStats,
		m.OperationErrors, m.HTTPRequests, m.HTTPDuration, m.MatchDuration,
		m.JobRuns, m.JobDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTransition counts one lifecycle transition
func (m *Metrics) ObserveTransition(event, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(event, to).Inc()
}

// ObserveMatch counts one match attempt and its duration
func (m *Metrics) ObserveMatch(skill, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.MatchAttempts.WithLabelValues(skill, outcome).Inc()
	m.MatchDuration.Observe(took.Seconds())
}

// ObservePayment counts one payment confirmation
func (m *Metrics) ObservePayment(phase, outcome string) {
	if m == nil {
		return
	}
	m.Payments.WithLabelValues(phase, outcome).Inc()
}

// ObserveEffect counts one side-effect delivery
func (m *Metrics) ObserveEffect(effectType, outcome string) {
	if m == nil {
		return
	}
	m.Effects.WithLabelValues(effectType, outcome).Inc()
}

// IncWorkerStat bumps a per-worker counter
func (m *Metrics) IncWorkerStat(workerID, stat string) {
	if m == nil {
		return
	}
	m.WorkerStats.WithLabelValues(workerID, stat).Inc()
}

// ObserveError counts a failed orchestrator operation
func (m *Metrics) ObserveError(operation, kind string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(operation, kind).Inc()
}

// ObserveJob counts one background job run and its duration
func (m *Metrics) ObserveJob(job, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
	m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
}
