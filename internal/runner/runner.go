// Package runner executes external commands scoped to a validated workspace
// directory. Nonzero exit codes are results, never errors; only path
// resolution failures and the inability to spawn at all surface as errors.
//
// Process containment:
//   - Working directory comes from the sandbox resolver, never from the caller
//   - Each process runs in its own process group (Setpgid)
//   - The entire group is killed on timeout or cancellation
//   - No environment inheritance from the parent — only a minimal safe set
//   - Resource limits enforced via ulimit
//   - stdout/stderr capped to prevent OOM from chatty commands
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

const (
	// maxOutputBytes caps captured stdout/stderr per stream.
	maxOutputBytes = 1 << 20 // 1 MB

	defaultTimeout    = 60 * time.Second
	defaultCPUSeconds = 120
	defaultMemoryMB   = 1024
)

// DirResolver validates a workspace-relative directory and returns its
// absolute path. Satisfied by fileops.Service.
type DirResolver interface {
	ResolveDir(workspaceID, relativeDir string) (string, error)
}

// Config configures runner defaults.
type Config struct {
	DefaultTimeout time.Duration
	DefaultLimits  ResourceLimits
}

// ResourceLimits constrains the spawned process.
type ResourceLimits struct {
	MaxCPUSeconds int // CPU time limit (ulimit -t).
	MaxMemoryMB   int // Virtual memory limit in MB (ulimit -v).
}

// Request describes a single command execution.
type Request struct {
	WorkspaceID string
	RelativeDir string   // Working directory inside the workspace. Empty = ".".
	Argv        []string // Program and arguments.
	Env         map[string]string
	Timeout     time.Duration // Zero = runner default.
}

// Result captures the outcome of a finished command. Immutable once
// produced and never partially filled.
type Result struct {
	Command  string        `json:"command"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"returncode"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"-"`
}

// Observer receives command execution telemetry. Implemented by the
// observability collector.
type Observer interface {
	ObserveCommand(status string, seconds float64)
}

// Runner executes commands with workspace-confined working directories.
type Runner struct {
	dirs           DirResolver
	defaultTimeout time.Duration
	defaultLimits  ResourceLimits
	observer       Observer
	logger         *slog.Logger
}

// New creates a Runner.
func New(dirs DirResolver, cfg Config, logger *slog.Logger) *Runner {
	timeout := cfg.DefaultTimeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	limits := cfg.DefaultLimits
	if limits.MaxCPUSeconds == 0 {
		limits.MaxCPUSeconds = defaultCPUSeconds
	}
	if limits.MaxMemoryMB == 0 {
		limits.MaxMemoryMB = defaultMemoryMB
	}
	return &Runner{
		dirs:           dirs,
		defaultTimeout: timeout,
		defaultLimits:  limits,
		logger:         logger,
	}
}

// WithObserver enables execution telemetry on the runner.
func (r *Runner) WithObserver(obs Observer) *Runner {
	r.observer = obs
	return r
}

func (r *Runner) observe(status string, seconds float64) {
	if r.observer != nil {
		r.observer.ObserveCommand(status, seconds)
	}
}

// Run executes the request and returns its captured result.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", sandbox.ErrInvalidArgument)
	}

	relDir := req.RelativeDir
	if relDir == "" {
		relDir = "."
	}
	workDir, err := r.dirs.ResolveDir(req.WorkspaceID, relDir)
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Wrap with ulimit enforcement: sh -c 'ulimit ...; exec "$@"' _ argv...
	// Positional parameters keep the command out of the shell string, so
	// nothing the agent supplies is ever shell-interpolated.
	memKB := r.defaultLimits.MaxMemoryMB * 1024
	shellScript := fmt.Sprintf(
		"ulimit -v %d 2>/dev/null; ulimit -t %d 2>/dev/null; exec \"$@\"",
		memKB, r.defaultLimits.MaxCPUSeconds,
	)
	args := make([]string, 0, 3+len(req.Argv))
	args = append(args, "-c", shellScript, "_")
	args = append(args, req.Argv...)

	cmd := exec.CommandContext(ctx, "/bin/sh", args...)
	cmd.Dir = workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// Negative PID = the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.Env = buildEnv(workDir, req.Env)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, remaining: maxOutputBytes}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, remaining: maxOutputBytes}

	commandText := strings.Join(req.Argv, " ")
	r.logger.InfoContext(ctx, "command executing",
		slog.String("workspace_id", req.WorkspaceID),
		slog.String("command", commandText),
		slog.String("dir", workDir),
		slog.Duration("timeout", timeout),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		if ctx.Err() != nil {
			r.logger.WarnContext(ctx, "command timed out",
				slog.String("command", commandText),
				slog.Duration("timeout", timeout),
			)
			r.observe("timeout", duration.Seconds())
			return nil, fmt.Errorf("%w: %s after %s", sandbox.ErrTimeout, commandText, timeout)
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			r.observe("spawn_failure", duration.Seconds())
			return nil, fmt.Errorf("%w: %v", sandbox.ErrSpawnFailure, runErr)
		}
	}

	r.logger.InfoContext(ctx, "command completed",
		slog.String("command", commandText),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", duration),
	)
	if exitCode == 0 {
		r.observe("success", duration.Seconds())
	} else {
		r.observe("failure", duration.Seconds())
	}

	return &Result{
		Command:  commandText,
		Stdout:   strings.TrimRight(stdoutBuf.String(), "\n"),
		Stderr:   strings.TrimRight(stderrBuf.String(), "\n"),
		ExitCode: exitCode,
		Success:  exitCode == 0,
		Duration: duration,
	}, nil
}

// buildEnv constructs a minimal environment. The parent environment is never
// inherited, so credentials configured for the server cannot leak into
// agent-invoked commands.
func buildEnv(workDir string, extra map[string]string) []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + workDir,
		"TMPDIR=" + workDir,
		"LANG=en_US.UTF-8",
		"TERM=dumb",
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// limitedWriter stops writing after a byte limit; excess data is silently
// discarded rather than treated as an error.
type limitedWriter struct {
	w         io.Writer
	remaining int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	total := len(p)
	if lw.remaining <= 0 {
		return total, nil
	}
	if len(p) > lw.remaining {
		p = p[:lw.remaining]
	}
	n, err := lw.w.Write(p)
	lw.remaining -= n
	if err != nil {
		return n, err
	}
	// Report full consumption so io.Copy never sees a short write when
	// the excess was deliberately discarded.
	return total, nil
}
