package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds all Prometheus metrics for starbridge.
// Uses a custom registry — no global state.
type MetricsCollector struct {
	Registry *prometheus.Registry

	// Tool execution metrics.
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Sandbox metrics.
	SandboxViolationsTotal *prometheus.CounterVec

	// Command runner metrics.
	CommandExecutionsTotal   *prometheus.CounterVec
	CommandExecutionDuration *prometheus.HistogramVec

	// Workspace lifecycle metrics.
	WorkspacesCreatedTotal prometheus.Counter
	WorkspacesDeletedTotal prometheus.Counter

	// HTTP gateway metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// System metrics.
	ActiveRequests prometheus.Gauge
}

// NewMetricsCollector creates a MetricsCollector with all metrics registered
// on a custom prometheus.Registry.
func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()

	m := &MetricsCollector{
		Registry: reg,

		ToolExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starbridge",
			Subsystem: "tool",
			Name:      "executions_total",
			Help:      "Total tool executions.",
		}, []string{"tool", "status"}),

		ToolExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "starbridge",
			Subsystem: "tool",
			Name:      "execution_duration_seconds",
			Help:      "Tool execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		SandboxViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starbridge",
			Subsystem: "sandbox",
			Name:      "violations_total",
			Help:      "Total rejected attempts to escape the sandbox boundary.",
		}, []string{"tool"}),

		CommandExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starbridge",
			Subsystem: "runner",
			Name:      "executions_total",
			Help:      "Total sandboxed command executions.",
		}, []string{"status"}),

		CommandExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "starbridge",
			Subsystem: "runner",
			Name:      "execution_duration_seconds",
			Help:      "Sandboxed command duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"status"}),

		WorkspacesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbridge",
			Subsystem: "workspace",
			Name:      "created_total",
			Help:      "Total workspaces created.",
		}),

		WorkspacesDeletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbridge",
			Subsystem: "workspace",
			Name:      "deleted_total",
			Help:      "Total workspaces deleted.",
		}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "starbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starbridge",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),
	}

	reg.MustRegister(
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.SandboxViolationsTotal,
		m.CommandExecutionsTotal,
		m.CommandExecutionDuration,
		m.WorkspacesCreatedTotal,
		m.WorkspacesDeletedTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
	)

	return m
}

// ObserveToolExecution records one dispatched tool call. Nil-receiver safe.
func (m *MetricsCollector) ObserveToolExecution(tool, status string, seconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(seconds)
}

// ObserveSandboxViolation records one rejected sandbox escape. Nil-receiver safe.
func (m *MetricsCollector) ObserveSandboxViolation(tool string) {
	if m == nil {
		return
	}
	m.SandboxViolationsTotal.WithLabelValues(tool).Inc()
}

// ObserveCommand records one sandboxed command run. Nil-receiver safe.
func (m *MetricsCollector) ObserveCommand(status string, seconds float64) {
	if m == nil {
		return
	}
	m.CommandExecutionsTotal.WithLabelValues(status).Inc()
	m.CommandExecutionDuration.WithLabelValues(status).Observe(seconds)
}

// ObserveWorkspaceCreated records one workspace creation. Nil-receiver safe.
func (m *MetricsCollector) ObserveWorkspaceCreated() {
	if m == nil {
		return
	}
	m.WorkspacesCreatedTotal.Inc()
}

// ObserveWorkspaceDeleted records one workspace removal. Nil-receiver safe.
func (m *MetricsCollector) ObserveWorkspaceDeleted() {
	if m == nil {
		return
	}
	m.WorkspacesDeletedTotal.Inc()
}
