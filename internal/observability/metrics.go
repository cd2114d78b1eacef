// Package observability provides Prometheus metrics and OpenTelemetry tracing for missions.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// MISSION METRICS
// =============================================================================

var (
	missionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_missions_total",
			Help: "Total number of missions run",
		},
		[]string{"status"}, // status: complete, failed
	)

	missionDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskpilot_mission_duration_seconds",
			Help:    "Mission duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_steps_total",
			Help: "Total number of plan steps executed",
		},
		[]string{"kind", "status"}, // kind: tool, code
	)

	codeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_code_attempts_total",
			Help: "Total number of generate-run-critique attempts",
		},
		[]string{"outcome"}, // outcome: pass, fail, error
	)

	dependencyInstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_dependency_installs_total",
			Help: "Total number of packages installed into the sandbox",
		},
		[]string{"source"}, // source: declared, missing_module
	)
)

// =============================================================================
// TOOL / SANDBOX / LLM METRICS
// =============================================================================

var (
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"}, // status: ok, error
	)

	sandboxRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_sandbox_runs_total",
			Help: "Total number of sandbox executions",
		},
		[]string{"kind", "status"}, // kind: run, install, shell
	)

	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpilot_llm_calls_total",
			Help: "Total number of completion calls",
		},
		[]string{"provider", "model", "status"},
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskpilot_llm_duration_seconds",
			Help:    "Completion call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "model"},
	)
)

// =============================================================================
// PUBLIC API
// =============================================================================

func RecordMission(status string, durationMS int64) {
	missionsTotal.WithLabelValues(status).Inc()
	missionDurationSeconds.Observe(float64(durationMS) / 1000.0)
}

func RecordStep(kind, status string) {
	stepsTotal.WithLabelValues(kind, status).Inc()
}

func RecordCodeAttempt(outcome string) {
	codeAttemptsTotal.WithLabelValues(outcome).Inc()
}

func RecordDependencyInstall(source string, count int) {
	dependencyInstallsTotal.WithLabelValues(source).Add(float64(count))
}

func RecordToolCall(tool, status string) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func RecordSandboxRun(kind, status string) {
	sandboxRunsTotal.WithLabelValues(kind, status).Inc()
}

func RecordLLMCall(provider, model, status string, durationMS int64) {
	llmCallsTotal.WithLabelValues(provider, model, status).Inc()
	llmDurationSeconds.WithLabelValues(provider, model).Observe(float64(durationMS) / 1000.0)
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
