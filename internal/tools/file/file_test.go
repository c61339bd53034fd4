package file

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starbridge-ai/starbridge/internal/fileops"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

func newService(t *testing.T) (*fileops.Service, string) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver, err := sandbox.NewResolver(root, logger)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	const wsID = "ws_test_00000000"
	if err := os.Mkdir(filepath.Join(resolver.Root(), wsID), 0o750); err != nil {
		t.Fatalf("mkdir workspace: %v", err)
	}
	return fileops.NewService(resolver, fileops.Config{}, logger), wsID
}

func TestWriteReadRoundTrip(t *testing.T) {
	svc, wsID := newService(t)
	ctx := context.Background()

	write := NewWriteTool(svc)
	res, err := write.Execute(ctx, map[string]any{
		"workspace_id": wsID,
		"path":         "docs/notes.md",
		"content":      "# Notes\nhello\n",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !res.Success {
		t.Fatal("write result not successful")
	}

	read := NewReadTool(svc)
	res, err = read.Execute(ctx, map[string]any{
		"workspace_id": wsID,
		"path":         "docs/notes.md",
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Output != "# Notes\nhello\n" {
		t.Fatalf("read output = %q", res.Output)
	}
}

func TestWriteEmptyContentAllowed(t *testing.T) {
	svc, wsID := newService(t)
	write := NewWriteTool(svc)
	if err := write.Validate(map[string]any{"workspace_id": wsID, "path": "empty.txt"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := write.Execute(context.Background(), map[string]any{
		"workspace_id": wsID,
		"path":         "empty.txt",
	}); err != nil {
		t.Fatalf("write empty: %v", err)
	}
}

func TestWriteRejectsNonStringContent(t *testing.T) {
	svc, wsID := newService(t)
	write := NewWriteTool(svc)
	err := write.Validate(map[string]any{"workspace_id": wsID, "path": "f", "content": 7})
	if !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestTraversalRejected(t *testing.T) {
	svc, wsID := newService(t)
	read := NewReadTool(svc)
	_, err := read.Execute(context.Background(), map[string]any{
		"workspace_id": wsID,
		"path":         "../../etc/passwd",
	})
	if !errors.Is(err, sandbox.ErrViolation) {
		t.Fatalf("err = %v, want ErrViolation", err)
	}
}

func TestListDefaultsToRoot(t *testing.T) {
	svc, wsID := newService(t)
	ctx := context.Background()
	write := NewWriteTool(svc)
	if _, err := write.Execute(ctx, map[string]any{
		"workspace_id": wsID, "path": "only.txt", "content": "x",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	list := NewListTool(svc)
	res, err := list.Execute(ctx, map[string]any{"workspace_id": wsID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Output != "only.txt" {
		t.Fatalf("list output = %q, want only.txt", res.Output)
	}
	if res.Metadata["count"] != 1 {
		t.Fatalf("count = %v, want 1", res.Metadata["count"])
	}
}

func TestMkdirIdempotent(t *testing.T) {
	svc, wsID := newService(t)
	ctx := context.Background()
	mkdir := NewMkdirTool(svc)
	params := map[string]any{"workspace_id": wsID, "path": "a/b/c"}
	for i := 0; i < 2; i++ {
		if _, err := mkdir.Execute(ctx, params); err != nil {
			t.Fatalf("mkdir attempt %d: %v", i+1, err)
		}
	}
}
