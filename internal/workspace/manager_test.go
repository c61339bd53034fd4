package workspace

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	resolver, err := sandbox.NewResolver(filepath.Join(t.TempDir(), "sbx"), nil)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(resolver, nil, logger)
}

func TestCreate(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Create(context.Background(), "demo project")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !strings.HasPrefix(ws.ID, "ws_demo_project_") {
		t.Errorf("ID = %q, want ws_demo_project_ prefix", ws.ID)
	}
	info, err := os.Stat(ws.Path)
	if err != nil || !info.IsDir() {
		t.Errorf("workspace dir not created: %v", err)
	}
}

func TestCreateUniqueIDs(t *testing.T) {
	m := newTestManager(t)

	seen := make(map[string]bool)
	for range 20 {
		ws, err := m.Create(context.Background(), "same-name")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[ws.ID] {
			t.Fatalf("duplicate workspace id: %s", ws.ID)
		}
		seen[ws.ID] = true
	}
}

func TestCreateEmptyName(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Create(context.Background(), "  "); !errors.Is(err, sandbox.ErrInvalidArgument) {
		t.Errorf("Create(blank) = %v, want ErrInvalidArgument", err)
	}
}

func TestCreateSanitizesName(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Create(context.Background(), "../../etc/passwd")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if strings.ContainsAny(ws.ID, "/\\") || strings.Contains(ws.ID, "..") {
		t.Errorf("unsafe characters survived sanitization: %q", ws.ID)
	}
}

func TestCreateBoundsSlugLength(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Create(context.Background(), strings.Repeat("x", 200))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// ws_ + slug(≤50) + _ + 8 hex chars.
	if len(ws.ID) > 3+maxSlugLen+1+8 {
		t.Errorf("workspace id too long: %d chars (%q)", len(ws.ID), ws.ID)
	}
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)

	ws, err := m.Create(context.Background(), "doomed")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.Path, "f.txt"), []byte("x"), 0640); err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(context.Background(), ws.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Errorf("workspace dir still present after Delete: %v", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	m := newTestManager(t)
	if err := m.Delete(context.Background(), "ws_ghost_00000000"); !errors.Is(err, sandbox.ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteTraversalID(t *testing.T) {
	m := newTestManager(t)
	if err := m.Delete(context.Background(), "../outside"); !errors.Is(err, sandbox.ErrViolation) {
		t.Errorf("Delete(traversal) = %v, want ErrViolation", err)
	}
}

func TestListWithoutLedger(t *testing.T) {
	m := newTestManager(t)

	a, err := m.Create(context.Background(), "alpha")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Create(context.Background(), "beta")
	if err != nil {
		t.Fatal(err)
	}

	records, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	ids := make(map[string]bool, len(records))
	for _, rec := range records {
		ids[rec.ID] = true
	}
	if !ids[a.ID] || !ids[b.ID] {
		t.Errorf("List missing workspaces: %v", ids)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"demo", "demo"},
		{"My Project!", "My_Project_"},
		{"a b\tc", "a_b_c"},
		{"keep-hyphen_and_underscore", "keep-hyphen_and_underscore"},
		{"", "project"},
		{"!!!", "_"},
	}
	for _, tc := range tests {
		if got := slugify(tc.in); got != tc.want {
			t.Errorf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
