package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/workspace"
)

func newManager(t *testing.T) *workspace.Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver, err := sandbox.NewResolver(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return workspace.NewManager(resolver, nil, logger)
}

func TestCreateListDelete(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	create := NewCreateTool(mgr)
	res, err := create.Execute(ctx, map[string]any{"project_name": "demo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := res.Output
	if !strings.HasPrefix(id, "ws_demo_") {
		t.Fatalf("workspace id = %q, want ws_demo_ prefix", id)
	}
	if res.Metadata["workspace_id"] != id {
		t.Fatalf("metadata workspace_id = %v, want %q", res.Metadata["workspace_id"], id)
	}

	list := NewListTool(mgr)
	res, err = list.Execute(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(res.Output, id) {
		t.Fatalf("list output %q missing %q", res.Output, id)
	}

	del := NewDeleteTool(mgr)
	if _, err := del.Execute(ctx, map[string]any{"workspace_id": id}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := del.Execute(ctx, map[string]any{"workspace_id": id}); !errors.Is(err, sandbox.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCreateValidate(t *testing.T) {
	create := NewCreateTool(newManager(t))
	if err := create.Validate(map[string]any{}); !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Fatalf("Validate(missing) = %v, want ErrInvalidArgument", err)
	}
	if err := create.Validate(map[string]any{"project_name": "ok"}); err != nil {
		t.Fatalf("Validate(ok) = %v", err)
	}
}

func TestDeleteRejectsTraversalID(t *testing.T) {
	del := NewDeleteTool(newManager(t))
	_, err := del.Execute(context.Background(), map[string]any{"workspace_id": "../outside"})
	if !errors.Is(err, sandbox.ErrViolation) {
		t.Fatalf("err = %v, want ErrViolation", err)
	}
}
