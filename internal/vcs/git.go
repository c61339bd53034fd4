// Package vcs implements a fixed catalog of git operations over the command
// runner. Each operation is a pass-through wrapper: it confines the working
// directory to the workspace and captures structured results, but never
// interprets git's semantic output.
package vcs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starbridge-ai/starbridge/internal/runner"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
)

// Defaults applied when the caller omits optional arguments.
const (
	DefaultRemote = "origin"
	DefaultBranch = "main"
	DefaultDir    = "."
)

// Credential-related variables are never forwarded; the runner already strips
// the parent environment, and this override keeps git from prompting.
var gitEnv = map[string]string{
	"GIT_TERMINAL_PROMPT": "0",
}

// Git runs git subcommands inside validated workspace directories.
type Git struct {
	runner *runner.Runner
	logger *slog.Logger
}

// New creates a Git service on top of the runner.
func New(r *runner.Runner, logger *slog.Logger) *Git {
	return &Git{runner: r, logger: logger}
}

// run executes one git subcommand and relays its captured result.
func (g *Git) run(ctx context.Context, workspaceID, relativeDir string, args ...string) (*runner.Result, error) {
	if relativeDir == "" {
		relativeDir = DefaultDir
	}
	argv := append([]string{"git"}, args...)

	g.logger.InfoContext(ctx, "git executing",
		slog.String("workspace_id", workspaceID),
		slog.String("subcommand", args[0]),
		slog.String("dir", relativeDir),
	)

	return g.runner.Run(ctx, runner.Request{
		WorkspaceID: workspaceID,
		RelativeDir: relativeDir,
		Argv:        argv,
		Env:         gitEnv,
	})
}

// Clone clones repoURL into the given workspace directory.
func (g *Git) Clone(ctx context.Context, workspaceID, relativeDir, repoURL string) (*runner.Result, error) {
	if repoURL == "" {
		return nil, fmt.Errorf("%w: repository URL must not be empty", sandbox.ErrInvalidArgument)
	}
	return g.run(ctx, workspaceID, relativeDir, "clone", repoURL, ".")
}

// Commit records a commit with the given message. When addAll is set, it
// stages everything first and returns the add failure verbatim if staging
// fails — the commit is never attempted in that case.
func (g *Git) Commit(ctx context.Context, workspaceID, relativeDir, message string, addAll bool) (*runner.Result, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: commit message must not be empty", sandbox.ErrInvalidArgument)
	}
	if addAll {
		addResult, err := g.run(ctx, workspaceID, relativeDir, "add", ".")
		if err != nil {
			return nil, err
		}
		if !addResult.Success {
			return addResult, nil
		}
	}
	return g.run(ctx, workspaceID, relativeDir, "commit", "-m", message)
}

// DiffStaged shows changes staged for the next commit.
func (g *Git) DiffStaged(ctx context.Context, workspaceID, relativeDir string) (*runner.Result, error) {
	return g.run(ctx, workspaceID, relativeDir, "diff", "--staged")
}

// Push pushes commits to the given remote and branch.
func (g *Git) Push(ctx context.Context, workspaceID, relativeDir, remote, branch string) (*runner.Result, error) {
	if remote == "" {
		remote = DefaultRemote
	}
	if branch == "" {
		branch = DefaultBranch
	}
	return g.run(ctx, workspaceID, relativeDir, "push", remote, branch)
}

// Pull pulls changes from the given remote and branch.
func (g *Git) Pull(ctx context.Context, workspaceID, relativeDir, remote, branch string) (*runner.Result, error) {
	if remote == "" {
		remote = DefaultRemote
	}
	if branch == "" {
		branch = DefaultBranch
	}
	return g.run(ctx, workspaceID, relativeDir, "pull", remote, branch)
}

// CreateBranch creates a new branch without switching to it.
func (g *Git) CreateBranch(ctx context.Context, workspaceID, relativeDir, name string) (*runner.Result, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: branch name must not be empty", sandbox.ErrInvalidArgument)
	}
	return g.run(ctx, workspaceID, relativeDir, "branch", name)
}

// CheckoutBranch switches to an existing branch.
func (g *Git) CheckoutBranch(ctx context.Context, workspaceID, relativeDir, name string) (*runner.Result, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: branch name must not be empty", sandbox.ErrInvalidArgument)
	}
	return g.run(ctx, workspaceID, relativeDir, "checkout", name)
}

// Status reports the working tree status.
func (g *Git) Status(ctx context.Context, workspaceID, relativeDir string) (*runner.Result, error) {
	return g.run(ctx, workspaceID, relativeDir, "status")
}

// Log shows recent commit history.
func (g *Git) Log(ctx context.Context, workspaceID, relativeDir string, maxCount int) (*runner.Result, error) {
	if maxCount <= 0 {
		maxCount = 20
	}
	return g.run(ctx, workspaceID, relativeDir, "log", "--oneline", fmt.Sprintf("-%d", maxCount))
}
