// Package sandbox implements the path confinement boundary for agent workspaces.
//
// Every filesystem and process operation in starbridge addresses its target
// through Resolver.Resolve, which turns an untrusted (workspaceID, relativePath)
// pair into an absolute path that is guaranteed to be a descendant of the
// owning workspace directory, itself a descendant of the sandbox root.
//
// Security:
//   - Traversal segments are rejected syntactically before any disk access
//   - Containment is re-checked on the symlink-resolved (canonical) path
//   - Containment is compared per path segment, never by raw string prefix,
//     so a sibling workspace whose name is a prefix (ws_a vs ws_ab) can
//     never leak through the check
//   - Directory creation re-validates the created parent afterwards
package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Resolver validates paths against a fixed sandbox root.
// It is stateless apart from the root and safe for concurrent use; its only
// side effect is optional parent-directory creation.
type Resolver struct {
	root   string // absolute, symlink-resolved
	logger *slog.Logger
}

// ResolveOptions control optional behavior of a single Resolve call.
type ResolveOptions struct {
	// EnsureParent creates all missing parent directories of the target.
	// Only directories are ever created, never files.
	EnsureParent bool

	// MustExist rejects targets that do not exist with ErrNotFound.
	MustExist bool
}

// NewResolver creates a Resolver for the given sandbox root.
// The root must be an absolute path; it is created if missing. A relative
// root is a fatal configuration error, not a recoverable one.
func NewResolver(root string, logger *slog.Logger) (*Resolver, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: sandbox root must not be empty", ErrInvalidArgument)
	}
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("%w: sandbox root %q must be an absolute path", ErrInvalidArgument, root)
	}
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("creating sandbox root %s: %w", root, err)
	}
	canonical, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing sandbox root %s: %w", root, err)
	}
	return &Resolver{root: canonical, logger: logger}, nil
}

// Root returns the canonical absolute sandbox root.
func (r *Resolver) Root() string {
	return r.root
}

// WorkspacePath returns the validated absolute path of a workspace root
// without requiring it to exist. Used by the workspace manager before
// creating the directory.
func (r *Resolver) WorkspacePath(workspaceID string) (string, error) {
	return r.Resolve(workspaceID, ".", ResolveOptions{})
}

// Resolve turns an untrusted workspace id and relative path into a validated
// absolute path. It returns the canonical target only if every boundary check
// passed; there is no partial success.
func (r *Resolver) Resolve(workspaceID, relativePath string, opts ResolveOptions) (string, error) {
	if workspaceID == "" {
		return "", fmt.Errorf("%w: workspace id must not be empty", ErrInvalidArgument)
	}
	if relativePath == "" {
		return "", fmt.Errorf("%w: relative path must not be empty", ErrInvalidArgument)
	}

	// Syntactic normalization catches the cheap cases before touching disk.
	normalized := filepath.Clean(relativePath)
	if filepath.IsAbs(normalized) {
		return "", r.violation(workspaceID, relativePath, "absolute paths are not permitted")
	}
	if normalized == ".." || strings.HasPrefix(normalized, ".."+string(filepath.Separator)) {
		return "", r.violation(workspaceID, relativePath, "leading parent-directory segment")
	}

	// The workspace must be a direct child of the sandbox root. A crafted id
	// containing separators or parent segments fails this check.
	workspaceRoot := filepath.Join(r.root, workspaceID)
	if workspaceRoot == r.root || filepath.Dir(workspaceRoot) != r.root {
		return "", r.violation(workspaceID, relativePath, "workspace id escapes the sandbox root")
	}

	canonicalWS, err := canonicalize(workspaceRoot)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalizing workspace root: %v", ErrInternal, err)
	}
	if !isWithin(r.root, canonicalWS) {
		return "", r.violation(workspaceID, relativePath, "workspace directory resolves outside the sandbox root")
	}

	target := filepath.Join(canonicalWS, normalized)
	canonicalTarget, err := canonicalize(target)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalizing target: %v", ErrInternal, err)
	}

	// The decisive check: containment of the symlink-resolved target within
	// the symlink-resolved workspace root.
	if !isWithin(canonicalWS, canonicalTarget) {
		return "", r.violation(workspaceID, relativePath, "target resolves outside the workspace")
	}

	if opts.EnsureParent {
		parent := filepath.Dir(canonicalTarget)
		if err := os.MkdirAll(parent, 0750); err != nil {
			return "", fmt.Errorf("creating parent directories for %s: %w", canonicalTarget, err)
		}
		// Re-validate after creation in case a pre-existing symlink in the
		// chain redirected the mkdir somewhere unexpected.
		canonicalParent, err := canonicalize(parent)
		if err != nil {
			return "", fmt.Errorf("%w: re-canonicalizing created parent: %v", ErrInternal, err)
		}
		if !isWithin(canonicalWS, canonicalParent) {
			return "", r.violation(workspaceID, relativePath, "parent creation resolved outside the workspace")
		}
	}

	if opts.MustExist {
		if _, err := os.Stat(canonicalTarget); err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, canonicalTarget)
			}
			return "", fmt.Errorf("stat %s: %w", canonicalTarget, err)
		}
	}

	return canonicalTarget, nil
}

// violation logs the escape attempt distinctly from ordinary errors and
// returns the typed rejection.
func (r *Resolver) violation(workspaceID, relativePath, reason string) error {
	if r.logger != nil {
		r.logger.Warn("sandbox violation rejected",
			slog.String("workspace_id", workspaceID),
			slog.String("relative_path", relativePath),
			slog.String("reason", reason),
		)
	}
	return &ViolationError{WorkspaceID: workspaceID, Path: relativePath, Reason: reason}
}

// canonicalize resolves symlinks for the deepest existing ancestor of path
// and rejoins the not-yet-existing remainder. This keeps validation correct
// for partially-created directory trees (e.g. a workspace that is about to
// be created, or a file whose parents EnsureParent has not made yet).
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	var missing []string
	current := path
	for {
		parent := filepath.Dir(current)
		if parent == current {
			// Hit the filesystem root without finding an existing ancestor.
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent

		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// isWithin reports whether target equals root or is a descendant of it,
// comparing whole path segments.
func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
