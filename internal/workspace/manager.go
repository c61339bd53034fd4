// Package workspace manages per-task workspace directories under the sandbox root.
//
// A workspace is created once by Create, mutated by file and VCS operations,
// and removed only by an explicit Delete. Exactly one logical task owns a
// workspace at a time; that exclusivity is caller discipline, not enforced here.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

// maxSlugLen bounds the project-name portion of a workspace id.
const maxSlugLen = 50

var unsafeChars = regexp.MustCompile(`[^\w-]+`)

// Workspace describes a created workspace directory.
type Workspace struct {
	ID   string // Opaque id used by every subsequent tool call.
	Path string // Absolute server-side path, mainly for logs.
}

// Record is the ledger entry for a workspace lifecycle.
type Record struct {
	ID          string
	ProjectName string
	Path        string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Ledger persists workspace lifecycle records. Implementations live in the
// storage layer; a nil Ledger disables persistence (the filesystem stays the
// source of truth either way).
type Ledger interface {
	RecordCreate(ctx context.Context, rec *Record) error
	RecordDelete(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, includeDeleted bool) ([]Record, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Record, error)
}

// Metrics receives workspace lifecycle counts. Implemented by the
// observability collector; a nil Metrics disables counting.
type Metrics interface {
	ObserveWorkspaceCreated()
	ObserveWorkspaceDeleted()
}

// Manager creates and removes workspace directories.
type Manager struct {
	resolver *sandbox.Resolver
	ledger   Ledger // nil = ledger disabled
	metrics  Metrics
	logger   *slog.Logger
}

// NewManager creates a Manager on top of the given resolver.
func NewManager(resolver *sandbox.Resolver, ledger Ledger, logger *slog.Logger) *Manager {
	return &Manager{resolver: resolver, ledger: ledger, logger: logger}
}

// WithMetrics enables lifecycle counters on the manager.
func (m *Manager) WithMetrics(metrics Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Create makes a uniquely-named workspace directory for projectName.
// The generated id has the form ws_<slug>_<suffix>; a directory collision is
// surfaced as ErrWorkspaceConflict rather than silently reused, because reuse
// would break the one-task-one-workspace assumption.
func (m *Manager) Create(ctx context.Context, projectName string) (*Workspace, error) {
	if strings.TrimSpace(projectName) == "" {
		return nil, fmt.Errorf("%w: project name must not be empty", sandbox.ErrInvalidArgument)
	}

	id := fmt.Sprintf("ws_%s_%s", slugify(projectName), randomSuffix())

	// Validate the target directory against the sandbox root before creating it.
	path, err := m.resolver.WorkspacePath(id)
	if err != nil {
		return nil, err
	}

	if err := os.Mkdir(path, 0750); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", sandbox.ErrWorkspaceConflict, id)
		}
		return nil, fmt.Errorf("creating workspace directory %s: %w", path, err)
	}

	m.logger.InfoContext(ctx, "workspace created",
		slog.String("workspace_id", id),
		slog.String("project", projectName),
		slog.String("path", path),
	)
	if m.metrics != nil {
		m.metrics.ObserveWorkspaceCreated()
	}

	if m.ledger != nil {
		rec := &Record{ID: id, ProjectName: projectName, Path: path, CreatedAt: time.Now().UTC()}
		if err := m.ledger.RecordCreate(ctx, rec); err != nil {
			// The directory exists and is valid; a ledger write failure must
			// not fail the creation. Log and continue.
			m.logger.WarnContext(ctx, "workspace ledger write failed",
				slog.String("workspace_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return &Workspace{ID: id, Path: path}, nil
}

// Delete removes a workspace directory and all of its contents.
func (m *Manager) Delete(ctx context.Context, workspaceID string) error {
	path, err := m.resolver.Resolve(workspaceID, ".", sandbox.ResolveOptions{MustExist: true})
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", sandbox.ErrNotADirectory, path)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing workspace %s: %w", path, err)
	}

	m.logger.InfoContext(ctx, "workspace deleted",
		slog.String("workspace_id", workspaceID),
		slog.String("path", path),
	)
	if m.metrics != nil {
		m.metrics.ObserveWorkspaceDeleted()
	}

	if m.ledger != nil {
		if err := m.ledger.RecordDelete(ctx, workspaceID, time.Now().UTC()); err != nil {
			m.logger.WarnContext(ctx, "workspace ledger delete failed",
				slog.String("workspace_id", workspaceID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// List returns the live workspaces. With a ledger configured, records come
// from there; otherwise the sandbox root directory is read directly.
func (m *Manager) List(ctx context.Context) ([]Record, error) {
	if m.ledger != nil {
		return m.ledger.List(ctx, false)
	}

	entries, err := os.ReadDir(m.resolver.Root())
	if err != nil {
		return nil, fmt.Errorf("reading sandbox root: %w", err)
	}
	var records []Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec := Record{ID: e.Name()}
		if info, err := e.Info(); err == nil {
			rec.CreatedAt = info.ModTime().UTC()
		}
		if path, err := m.resolver.WorkspacePath(e.Name()); err == nil {
			rec.Path = path
		}
		records = append(records, rec)
	}
	return records, nil
}

// slugify strips a project name down to a bounded filesystem-safe token.
func slugify(name string) string {
	slug := unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	if slug == "" {
		slug = "project"
	}
	return slug
}

// randomSuffix returns 8 hex characters of a fresh random UUID.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
