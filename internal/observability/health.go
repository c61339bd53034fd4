package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"
)

// readinessTimeout bounds one full readiness pass. A hung ledger must not
// stall the health endpoint.
const readinessTimeout = 3 * time.Second

// CheckFunc probes one dependency of the tool server.
type CheckFunc func(ctx context.Context) error

// HealthChecker answers liveness (process up) and readiness (sandbox root
// reachable, ledger answering) for the gateway endpoints. Checks are
// registered once during startup wiring; there is no locking.
type HealthChecker struct {
	checks map[string]CheckFunc
	logger *slog.Logger
}

// HealthStatus is the JSON response for health/readiness endpoints.
type HealthStatus struct {
	Status string                 `json:"status"` // "ok" or "degraded"
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the status of a single dependency check.
type CheckResult struct {
	Status  string `json:"status"`            // "ok" or "fail"
	Message string `json:"message,omitempty"` // Error message on failure.
}

// NewHealthChecker creates a HealthChecker with no checks registered.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]CheckFunc),
		logger: logger,
	}
}

// AddCheck registers a named readiness check. A later registration under the
// same name replaces the earlier one.
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.checks[name] = check
}

// SandboxRootCheck reports failure when the sandbox root no longer exists or
// stopped being a directory. Workspaces cannot be served without it.
func SandboxRootCheck(root string) CheckFunc {
	return func(context.Context) error {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("sandbox root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("sandbox root %s is not a directory", root)
		}
		return nil
	}
}

// LedgerCheck wraps the workspace ledger's connectivity probe.
func LedgerCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("workspace ledger: %w", err)
		}
		return nil
	}
}

// CheckHealth returns liveness status. Always "ok" while the process runs.
func (h *HealthChecker) CheckHealth() HealthStatus {
	return HealthStatus{Status: "ok"}
}

// CheckReady runs every registered check under one shared deadline and
// aggregates the results: "ok" only when all pass, "degraded" otherwise.
func (h *HealthChecker) CheckReady(ctx context.Context) HealthStatus {
	if len(h.checks) == 0 {
		return HealthStatus{Status: "ok"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	status := HealthStatus{
		Status: "ok",
		Checks: make(map[string]CheckResult, len(h.checks)),
	}

	for _, name := range h.checkNames() {
		err := h.checks[name](checkCtx)
		if err == nil {
			status.Checks[name] = CheckResult{Status: "ok"}
			continue
		}
		status.Status = "degraded"
		status.Checks[name] = CheckResult{Status: "fail", Message: err.Error()}
		if h.logger != nil {
			h.logger.Warn("readiness check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
		}
	}

	return status
}

// checkNames returns registered names sorted, so check order and log output
// are stable across calls.
func (h *HealthChecker) checkNames() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
