package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the tool-facing error taxonomy. Handlers and
// gateways classify failures with errors.Is against these; the string
// name for protocol payloads comes from Kind.
var (
	// ErrInvalidArgument indicates empty or malformed required input — a caller bug.
	ErrInvalidArgument = errors.New("sandbox: invalid argument")

	// ErrViolation indicates a path that would escape the workspace or the
	// sandbox root. Never recoverable by retry and always surfaced verbatim.
	ErrViolation = errors.New("sandbox: path escapes sandbox boundary")

	// ErrNotFound indicates the target path does not exist.
	ErrNotFound = errors.New("sandbox: path does not exist")

	// ErrNotAFile indicates the target exists but is not a regular file.
	ErrNotAFile = errors.New("sandbox: path is not a regular file")

	// ErrNotADirectory indicates the target exists but is not a directory.
	ErrNotADirectory = errors.New("sandbox: path is not a directory")

	// ErrFileTooLarge indicates an on-disk file exceeds the configured size
	// cap. Unlike ErrInvalidArgument this reflects workspace state, not a
	// malformed request.
	ErrFileTooLarge = errors.New("sandbox: file exceeds size limit")

	// ErrWorkspaceConflict indicates a freshly generated workspace id collided
	// with an existing directory. The caller should retry with a new id.
	ErrWorkspaceConflict = errors.New("sandbox: workspace already exists")

	// ErrSpawnFailure indicates an external command could not be started at all.
	ErrSpawnFailure = errors.New("sandbox: command could not be started")

	// ErrTimeout indicates an external command exceeded its wall-clock budget
	// and was forcibly terminated.
	ErrTimeout = errors.New("sandbox: command timed out")

	// ErrInternal is the catch-all for unanticipated failures.
	ErrInternal = errors.New("sandbox: internal error")
)

// ViolationError is returned for every sandbox escape attempt. It wraps
// ErrViolation so errors.Is(err, ErrViolation) still works, and carries the
// offending input for audit logging.
type ViolationError struct {
	// WorkspaceID is the workspace the caller claimed to address.
	WorkspaceID string
	// Path is the caller-supplied relative path.
	Path string
	// Reason explains which boundary check failed.
	Reason string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s: workspace %q path %q: %s", ErrViolation.Error(), e.WorkspaceID, e.Path, e.Reason)
}

func (e *ViolationError) Unwrap() error {
	return ErrViolation
}

// Kind returns the stable taxonomy name for an error, used in protocol-level
// error payloads. Unrecognized errors report as "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrViolation):
		return "sandbox_violation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAFile):
		return "not_a_file"
	case errors.Is(err, ErrNotADirectory):
		return "not_a_directory"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrWorkspaceConflict):
		return "workspace_conflict"
	case errors.Is(err, ErrSpawnFailure):
		return "spawn_failure"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}
