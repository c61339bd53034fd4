package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starbridge-ai/starbridge/internal/fileops"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	resolver, err := sandbox.NewResolver(filepath.Join(t.TempDir(), "sbx"), nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	const wsID = "ws_run_00000001"
	if err := os.Mkdir(filepath.Join(resolver.Root(), wsID), 0750); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	files := fileops.NewService(resolver, fileops.Config{}, logger)
	return New(files, Config{}, logger), wsID
}

func TestRunCapturesOutput(t *testing.T) {
	r, ws := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"sh", "-c", "echo out; echo err >&2"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "out" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out")
	}
	if res.Stderr != "err" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err")
	}
	if !res.Success || res.ExitCode != 0 {
		t.Errorf("Success=%v ExitCode=%d, want success", res.Success, res.ExitCode)
	}
}

func TestRunNonzeroExitIsResult(t *testing.T) {
	r, ws := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"sh", "-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("Run returned error for nonzero exit: %v", err)
	}
	if res.Success {
		t.Error("Success = true for exit 3")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunWorkingDirectory(t *testing.T) {
	r, ws := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"pwd"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stdout, ws) {
		t.Errorf("pwd = %q, want path containing %q", res.Stdout, ws)
	}
}

func TestRunEmptyArgv(t *testing.T) {
	r, ws := newTestRunner(t)
	if _, err := r.Run(context.Background(), Request{WorkspaceID: ws}); !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Errorf("Run(empty argv) = %v, want ErrInvalidArgument", err)
	}
}

func TestRunTraversalDirRejected(t *testing.T) {
	r, ws := newTestRunner(t)
	_, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		RelativeDir: "../..",
		Argv:        []string{"true"},
	})
	if !errors.Is(err, sandbox.ErrViolation) {
		t.Errorf("Run(traversal dir) = %v, want ErrViolation", err)
	}
}

func TestRunMissingDirRejected(t *testing.T) {
	r, ws := newTestRunner(t)
	_, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		RelativeDir: "no-such-dir",
		Argv:        []string{"true"},
	})
	if !errors.Is(err, sandbox.ErrNotFound) {
		t.Errorf("Run(missing dir) = %v, want ErrNotFound", err)
	}
}

func TestRunTimeout(t *testing.T) {
	r, ws := newTestRunner(t)

	_, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"sleep", "10"},
		Timeout:     100 * time.Millisecond,
	})
	if !errors.Is(err, sandbox.ErrTimeout) {
		t.Errorf("Run(sleep) = %v, want ErrTimeout", err)
	}
}

func TestRunSanitizedEnv(t *testing.T) {
	t.Setenv("STARBRIDGE_SECRET_TOKEN", "leakme")
	r, ws := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"env"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(res.Stdout, "leakme") {
		t.Error("parent environment leaked into the command")
	}
}

func TestRunExtraEnv(t *testing.T) {
	r, ws := newTestRunner(t)

	res, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"sh", "-c", "echo $EXTRA_VAR"},
		Env:         map[string]string{"EXTRA_VAR": "present"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "present" {
		t.Errorf("EXTRA_VAR = %q, want %q", res.Stdout, "present")
	}
}

func TestRunOversizedOutputTruncatesNotErrors(t *testing.T) {
	r, ws := newTestRunner(t)

	// Twice the per-stream cap; the command still exits 0 and must come
	// back as a truncated success Result, never as an error.
	res, err := r.Run(context.Background(), Request{
		WorkspaceID: ws,
		Argv:        []string{"sh", "-c", "head -c 2097152 /dev/zero | tr '\\0' 'a'"},
	})
	if err != nil {
		t.Fatalf("Run errored on oversized output: %v", err)
	}
	if !res.Success || res.ExitCode != 0 {
		t.Fatalf("Success=%v ExitCode=%d, want clean exit", res.Success, res.ExitCode)
	}
	if len(res.Stdout) != maxOutputBytes {
		t.Errorf("Stdout length = %d, want cap %d", len(res.Stdout), maxOutputBytes)
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, remaining: 5}

	n, err := lw.Write([]byte("abcdefgh"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	// The writer reports full consumption so the copier never errors.
	if n != 8 {
		t.Errorf("n = %d, want 8", n)
	}
	if buf.String() != "abcde" {
		t.Errorf("captured = %q, want %q", buf.String(), "abcde")
	}

	n, err = lw.Write([]byte("more"))
	if err != nil || n != 4 {
		t.Errorf("post-cap Write = (%d, %v), want (4, nil)", n, err)
	}
	if buf.String() != "abcde" {
		t.Errorf("cap not enforced: %q", buf.String())
	}
}
