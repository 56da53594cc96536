package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for toolchat. All Record methods
// are safe to call on a nil *Metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordToolExecution("weather", "success", time.Since(start).Seconds())
type Metrics struct {
	// ChatRequests counts chat calls.
	// Labels: mode (batch|stream), outcome (answered|cached|max_iterations|rate_limited|timeout|upstream|error)
	ChatRequests *prometheus.CounterVec

	// LLMRequestDuration measures model call latency in seconds.
	// Labels: provider, mode
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts model calls.
	// Labels: provider, status (success|error|timeout)
	LLMRequestCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// CacheLookups counts response cache lookups.
	// Labels: result (hit|miss)
	CacheLookups *prometheus.CounterVec

	// RateLimitDenials counts requests rejected by the limiter.
	RateLimitDenials prometheus.Counter

	// PersistenceFailures counts dropped audit and history writes.
	// Labels: op (audit|history)
	PersistenceFailures *prometheus.CounterVec

	// MaintenanceRuns counts background sweep executions.
	// Labels: job, status (success|error)
	MaintenanceRuns *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolchat_chat_requests_total",
				Help: "Total number of chat calls by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolchat_llm_request_duration_seconds",
				Help:    "Duration of model calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "mode"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolchat_llm_requests_total",
				Help: "Total number of model calls by provider and status",
			},
			[]string{"provider", "status"},
		),

		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolchat_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolchat_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolchat_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),

		RateLimitDenials: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolchat_rate_limit_denials_total",
				Help: "Chat calls rejected by the rate limiter",
			},
		),

		PersistenceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolchat_persistence_failures_total",
				Help: "Audit and history writes that failed and were dropped",
			},
			[]string{"op"},
		),

		MaintenanceRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolchat_maintenance_runs_total",
				Help: "Background maintenance job runs by job and status",
			},
			[]string{"job", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolchat_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordChat counts one chat call outcome.
func (m *Metrics) RecordChat(mode, outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(mode, outcome).Inc()
}

// RecordLLMRequest records one model call.
func (m *Metrics) RecordLLMRequest(provider, mode, status string, seconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, mode).Observe(seconds)
}

// RecordToolExecution records one tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(seconds)
}

// RecordCacheLookup counts a response cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordRateLimitDenied counts a rejected chat call.
func (m *Metrics) RecordRateLimitDenied() {
	if m == nil {
		return
	}
	m.RateLimitDenials.Inc()
}

// RecordPersistenceFailure counts a dropped write.
func (m *Metrics) RecordPersistenceFailure(op string) {
	if m == nil {
		return
	}
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

// RecordMaintenance counts a maintenance job run.
func (m *Metrics) RecordMaintenance(job string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MaintenanceRuns.WithLabelValues(job, status).Inc()
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(statusCode)).Observe(seconds)
}
