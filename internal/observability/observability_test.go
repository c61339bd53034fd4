package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/starbridge-ai/starbridge/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// counterValue gathers the registry and returns the value of the named
// counter for the given label values, keyed by label name.
func counterValue(t *testing.T, m *MetricsCollector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if matchLabels(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(metric *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestObserveToolExecution(t *testing.T) {
	m := NewMetricsCollector()
	m.ObserveToolExecution("write_file", "success", 0.01)
	m.ObserveToolExecution("write_file", "success", 0.02)
	m.ObserveToolExecution("write_file", "error", 0.5)

	got := counterValue(t, m, "starbridge_tool_executions_total",
		map[string]string{"tool": "write_file", "status": "success"})
	if got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	got = counterValue(t, m, "starbridge_tool_executions_total",
		map[string]string{"tool": "write_file", "status": "error"})
	if got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestObserveSandboxViolation(t *testing.T) {
	m := NewMetricsCollector()
	m.ObserveSandboxViolation("read_file")
	m.ObserveSandboxViolation("read_file")

	got := counterValue(t, m, "starbridge_sandbox_violations_total",
		map[string]string{"tool": "read_file"})
	if got != 2 {
		t.Errorf("violation count = %v, want 2", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var m *MetricsCollector
	m.ObserveToolExecution("x", "success", 0)
	m.ObserveSandboxViolation("x")
	m.ObserveCommand("success", 0)
}

func TestNewFromConfig(t *testing.T) {
	obs, err := New(nil, discardLogger())
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if obs != nil {
		t.Fatal("New(nil) should return nil observability")
	}
	if obs.MetricsOrNil() != nil {
		t.Fatal("nil observability must yield nil metrics")
	}

	obs, err = New(&config.ObservabilityConfig{
		Metrics: &config.MetricsConfig{Enabled: true},
	}, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if obs.Metrics == nil {
		t.Fatal("metrics not created")
	}
	if obs.Health == nil {
		t.Fatal("health checker not created")
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetricsCollector()
	handler := HTTPMetricsMiddleware(m, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/v1/tools", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	got := counterValue(t, m, "starbridge_http_requests_total",
		map[string]string{"method": "GET", "path": "/v1/tools", "status_code": "418"})
	if got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddlewareNilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker(discardLogger())
	if got := h.CheckHealth().Status; got != "ok" {
		t.Fatalf("CheckHealth = %q", got)
	}
	if got := h.CheckReady(context.Background()).Status; got != "ok" {
		t.Fatalf("CheckReady with no checks = %q", got)
	}

	h.AddCheck("db", func(context.Context) error { return nil })
	h.AddCheck("sandbox", func(context.Context) error { return errors.New("root missing") })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Fatalf("Status = %q, want degraded", status.Status)
	}
	if status.Checks["db"].Status != "ok" {
		t.Errorf("db check = %+v", status.Checks["db"])
	}
	if status.Checks["sandbox"].Status != "fail" {
		t.Errorf("sandbox check = %+v", status.Checks["sandbox"])
	}
}

func TestSandboxRootCheck(t *testing.T) {
	root := t.TempDir()
	if err := SandboxRootCheck(root)(context.Background()); err != nil {
		t.Fatalf("existing root: %v", err)
	}

	if err := SandboxRootCheck(filepath.Join(root, "gone"))(context.Background()); err == nil {
		t.Fatal("missing root should fail")
	}

	file := filepath.Join(root, "plain")
	if err := os.WriteFile(file, []byte("x"), 0640); err != nil {
		t.Fatal(err)
	}
	if err := SandboxRootCheck(file)(context.Background()); err == nil {
		t.Fatal("non-directory root should fail")
	}
}

func TestLedgerCheck(t *testing.T) {
	ok := LedgerCheck(func(context.Context) error { return nil })
	if err := ok(context.Background()); err != nil {
		t.Fatalf("healthy ledger: %v", err)
	}

	bad := LedgerCheck(func(context.Context) error { return errors.New("database locked") })
	err := bad(context.Background())
	if err == nil {
		t.Fatal("failing ledger should propagate")
	}
	if !strings.Contains(err.Error(), "workspace ledger") {
		t.Fatalf("err = %v, want ledger prefix", err)
	}
}
