package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

type fakeTool struct {
	name    string
	execErr error
	valErr  error
	result  *Result
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string         { return "fake tool" }
func (f *fakeTool) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Validate(map[string]any) error {
	return f.valErr
}
func (f *fakeTool) Execute(context.Context, map[string]any) (*Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return f.result, nil
}

type fakeObserver struct {
	executions []string
	violations []string
}

func (o *fakeObserver) ObserveToolExecution(tool, status string, _ float64) {
	o.executions = append(o.executions, tool+":"+status)
}

func (o *fakeObserver) ObserveSandboxViolation(tool string) {
	o.violations = append(o.violations, tool)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "alpha"})
	reg.Register(&fakeTool{name: "beta"})

	if got := reg.Get("alpha"); got == nil || got.Name() != "alpha" {
		t.Fatalf("Get(alpha) = %v", got)
	}
	if got := reg.Get("missing"); got != nil {
		t.Fatalf("Get(missing) = %v, want nil", got)
	}
	if len(reg.List()) != 2 {
		t.Fatalf("List() = %v, want 2 names", reg.List())
	}
	if len(reg.All()) != 2 {
		t.Fatalf("All() returned %d tools, want 2", len(reg.All()))
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "dup"})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	reg.Register(&fakeTool{name: "dup"})
}

func TestDispatcherUnknownOperation(t *testing.T) {
	d := NewDispatcher(NewRegistry(), nil, discardLogger())
	_, err := d.Call(context.Background(), "nope", nil)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("err = %v, want ErrUnknownOperation", err)
	}
}

func TestDispatcherRecordsStatuses(t *testing.T) {
	obs := &fakeObserver{}
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "ok", result: &Result{Output: "done", Success: true}})
	reg.Register(&fakeTool{name: "soft_fail", result: &Result{Output: "nonzero exit", Success: false}})
	reg.Register(&fakeTool{name: "boom", execErr: errors.New("disk on fire")})
	d := NewDispatcher(reg, obs, discardLogger())

	ctx := context.Background()
	if _, err := d.Call(ctx, "ok", nil); err != nil {
		t.Fatalf("ok call: %v", err)
	}
	if _, err := d.Call(ctx, "soft_fail", nil); err != nil {
		t.Fatalf("soft_fail call: %v", err)
	}
	if _, err := d.Call(ctx, "boom", nil); err == nil {
		t.Fatal("boom call: want error")
	}

	want := []string{"ok:success", "soft_fail:failure", "boom:error"}
	if len(obs.executions) != len(want) {
		t.Fatalf("executions = %v, want %v", obs.executions, want)
	}
	for i, w := range want {
		if obs.executions[i] != w {
			t.Errorf("executions[%d] = %q, want %q", i, obs.executions[i], w)
		}
	}
}

func TestDispatcherSurfacesViolations(t *testing.T) {
	obs := &fakeObserver{}
	reg := NewRegistry()
	vErr := &sandbox.ViolationError{WorkspaceID: "ws_x", Path: "../etc", Reason: "path escapes workspace"}
	reg.Register(&fakeTool{name: "escape", execErr: vErr})
	d := NewDispatcher(reg, obs, discardLogger())

	_, err := d.Call(context.Background(), "escape", nil)
	if !errors.Is(err, sandbox.ErrViolation) {
		t.Fatalf("err = %v, want sandbox violation to propagate", err)
	}
	if len(obs.violations) != 1 || obs.violations[0] != "escape" {
		t.Fatalf("violations = %v, want [escape]", obs.violations)
	}
	if len(obs.executions) != 1 || obs.executions[0] != "escape:violation" {
		t.Fatalf("executions = %v, want [escape:violation]", obs.executions)
	}
}

func TestDispatcherValidateFailureSkipsExecute(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{
		name:   "strict",
		valErr: sandbox.ErrInvalidArgument,
		result: &Result{Success: true},
	})
	d := NewDispatcher(reg, nil, discardLogger())

	_, err := d.Call(context.Background(), "strict", nil)
	if !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := TruncateOutput(long, 50)
	if len(got) > 50 {
		t.Fatalf("truncated length = %d, want <= 50", len(got))
	}
	if !strings.Contains(got, "truncated") {
		t.Fatalf("truncated output missing notice: %q", got)
	}
	if TruncateOutput("short", 50) != "short" {
		t.Fatal("short output must pass through unchanged")
	}
}

func TestRequireString(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"present", map[string]any{"k": "v"}, false},
		{"missing", map[string]any{}, true},
		{"empty", map[string]any{"k": ""}, true},
		{"wrong type", map[string]any{"k": 42}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequireString(tt.params, "k")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, sandbox.ErrInvalidArgument) {
				t.Fatalf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestOptionalHelpers(t *testing.T) {
	params := map[string]any{"s": "val", "b": true, "empty": ""}
	if got := OptionalString(params, "s", "def"); got != "val" {
		t.Fatalf("OptionalString = %q", got)
	}
	if got := OptionalString(params, "empty", "def"); got != "def" {
		t.Fatalf("OptionalString(empty) = %q, want default", got)
	}
	if got := OptionalString(params, "nope", "def"); got != "def" {
		t.Fatalf("OptionalString(nope) = %q, want default", got)
	}
	if !OptionalBool(params, "b", false) {
		t.Fatal("OptionalBool(b) = false, want true")
	}
	if OptionalBool(params, "nope", false) {
		t.Fatal("OptionalBool(nope) = true, want default false")
	}
}
