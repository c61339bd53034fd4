// Package tools defines the tool interface, registry, and dispatch surface
// for starbridge. Dispatch is a pure lookup-and-invoke: all real validation
// lives in the handlers, which route every path through the sandbox resolver.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

// ErrUnknownOperation indicates a dispatch request named a tool that is not
// registered.
var ErrUnknownOperation = errors.New("tools: unknown operation")

// Tool is the interface all starbridge tools implement.
type Tool interface {
	// Name returns the tool's unique identifier (e.g. "write_file").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// InputSchema returns a JSON Schema object describing the tool's
	// parameters, advertised to the calling protocol.
	InputSchema() map[string]any

	// Validate checks that params are well-formed before execution.
	Validate(params map[string]any) error

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params map[string]any) (*Result, error)
}

// Result is the outcome of a tool execution.
type Result struct {
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Success  bool           `json:"success"`
}

// MaxOutputBytes caps tool output relayed to the caller.
const MaxOutputBytes = 1 << 20 // 1 MB

// TruncateOutput caps a string at maxBytes, appending a truncation notice if cut.
func TruncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	const suffix = "\n... [output truncated]"
	if maxBytes <= len(suffix) {
		return s[:maxBytes]
	}
	return s[:maxBytes-len(suffix)] + suffix
}

// Registry holds available tools keyed by name.
// Thread-safe for concurrent reads; writes should only happen at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Panics on duplicate names (startup config error, not runtime).
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		panic("duplicate tool registration: " + t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// List returns all registered tool names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// All returns all registered tools.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	return result
}

// Observer receives dispatch outcomes for metrics. Implemented by the
// observability collector; a nil Observer disables recording.
type Observer interface {
	ObserveToolExecution(tool, status string, seconds float64)
	ObserveSandboxViolation(tool string)
}

// Dispatcher routes inbound operation requests to registered tools.
type Dispatcher struct {
	registry *Registry
	observer Observer // nil = metrics disabled
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher over the registry.
func NewDispatcher(registry *Registry, observer Observer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, observer: observer, logger: logger}
}

// Registry returns the underlying tool registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Call validates and executes the named tool. A SandboxViolation from the
// handler is never swallowed or downgraded; it fails this request and is
// surfaced verbatim to the requester.
func (d *Dispatcher) Call(ctx context.Context, name string, params map[string]any) (*Result, error) {
	tool := d.registry.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	start := time.Now()
	result, err := d.invoke(ctx, tool, params)
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil:
		status := "success"
		if !result.Success {
			status = "failure"
		}
		d.record(name, status, elapsed)
	case errors.Is(err, sandbox.ErrViolation):
		d.logger.WarnContext(ctx, "tool rejected by sandbox boundary",
			slog.String("tool", name),
			slog.String("error", err.Error()),
		)
		if d.observer != nil {
			d.observer.ObserveSandboxViolation(name)
		}
		d.record(name, "violation", elapsed)
	default:
		d.logger.ErrorContext(ctx, "tool execution failed",
			slog.String("tool", name),
			slog.String("kind", sandbox.Kind(err)),
			slog.String("error", err.Error()),
		)
		d.record(name, "error", elapsed)
	}

	return result, err
}

func (d *Dispatcher) invoke(ctx context.Context, tool Tool, params map[string]any) (*Result, error) {
	if err := tool.Validate(params); err != nil {
		return nil, err
	}
	return tool.Execute(ctx, params)
}

func (d *Dispatcher) record(name, status string, seconds float64) {
	if d.observer != nil {
		d.observer.ObserveToolExecution(name, status, seconds)
	}
}

// --- Shared parameter helpers ---

// RequireString extracts a required non-empty string param.
func RequireString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("%w: missing required parameter %q", sandbox.ErrInvalidArgument, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: parameter %q must be a string, got %T", sandbox.ErrInvalidArgument, key, v)
	}
	if s == "" {
		return "", fmt.Errorf("%w: parameter %q must not be empty", sandbox.ErrInvalidArgument, key)
	}
	return s, nil
}

// OptionalString extracts an optional string param, falling back to def when
// absent or empty.
func OptionalString(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// OptionalBool extracts an optional bool param with a default.
func OptionalBool(params map[string]any, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}
