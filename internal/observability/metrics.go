// Package observability registers and records the process-wide Prometheus
// metrics for the advisor runtime.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	generateAttemptsTotal *prometheus.CounterVec
	rotationsTotal        prometheus.Counter
	generateDuration      *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	loopTurnsTotal  *prometheus.CounterVec
	taskTotal       *prometheus.CounterVec
	taskDuration    prometheus.Histogram
	activeSessions  prometheus.Gauge
	sessionSaves    prometheus.Histogram
	sessionLoads    prometheus.Histogram
	sessionArchived prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			generateAttemptsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "generate_attempts_total",
					Help: "Total generation attempts by provider and status.",
				},
				[]string{"provider", "status"},
			),
			rotationsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "credential_rotations_total",
					Help: "Total credential rotations triggered by transient failures.",
				},
			),
			generateDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "generate_duration_seconds",
					Help:    "Generation call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			loopTurnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_loop_turns_total",
					Help: "Total agent loop terminations by outcome.",
				},
				[]string{"outcome"},
			),
			taskTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "task_total",
					Help: "Total processed task envelopes by status.",
				},
				[]string{"status"},
			),
			taskDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "task_duration_seconds",
					Help:    "Task processing duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current stored session count.",
				},
			),
			sessionSaves: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionLoads: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionArchived: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_archived_total",
					Help: "Total sessions moved to the archive.",
				},
			),
		}

		prometheus.MustRegister(
			m.generateAttemptsTotal,
			m.rotationsTotal,
			m.generateDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.loopTurnsTotal,
			m.taskTotal,
			m.taskDuration,
			m.activeSessions,
			m.sessionSaves,
			m.sessionLoads,
			m.sessionArchived,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the HTTP handler serving the metrics endpoint.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordGenerateAttempt(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.generateAttemptsTotal.WithLabelValues(provider, status).Inc()
	m.generateDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordRotation() {
	getMetrics().rotationsTotal.Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordLoopOutcome(outcome string) {
	getMetrics().loopTurnsTotal.WithLabelValues(outcome).Inc()
}

func RecordTask(status string, duration time.Duration) {
	m := getMetrics()
	m.taskTotal.WithLabelValues(status).Inc()
	m.taskDuration.Observe(duration.Seconds())
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaves.Observe(duration.Seconds())
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoads.Observe(duration.Seconds())
}

func RecordSessionArchived() {
	getMetrics().sessionArchived.Inc()
}
