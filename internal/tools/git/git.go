// Package git exposes version-control operations as tools.
//
// Every operation shells out to the git binary inside the workspace through
// the sandboxed command runner. A git failure (nonzero exit) is a successful
// tool call with Success=false; only sandbox and spawn problems are errors.
package git

import (
	"context"
	"fmt"

	"github.com/starbridge-ai/starbridge/internal/runner"
	"github.com/starbridge-ai/starbridge/internal/tools"
	"github.com/starbridge-ai/starbridge/internal/vcs"
)

// runFunc executes one git operation and returns the raw command result.
type runFunc func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error)

// Tool is a single git operation bound to the shared vcs layer.
type Tool struct {
	git         *vcs.Git
	name        string
	description string
	schema      map[string]any
	required    []string
	run         runFunc
}

func (t *Tool) Name() string                { return t.name }
func (t *Tool) Description() string         { return t.description }
func (t *Tool) InputSchema() map[string]any { return t.schema }

func (t *Tool) Validate(params map[string]any) error {
	for _, key := range t.required {
		if _, err := tools.RequireString(params, key); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	res, err := t.run(ctx, t.git, params)
	if err != nil {
		return nil, err
	}
	return toResult(res), nil
}

// toResult folds a command result into the tool result shape. Stderr is
// appended to the output so callers see git's own diagnostics on failure.
func toResult(res *runner.Result) *tools.Result {
	output := res.Stdout
	if res.Stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += res.Stderr
	}
	return &tools.Result{
		Output:  tools.TruncateOutput(output, tools.MaxOutputBytes),
		Success: res.Success,
		Metadata: map[string]any{
			"command":    res.Command,
			"returncode": res.ExitCode,
		},
	}
}

func baseProperties(extra map[string]any) map[string]any {
	props := map[string]any{
		"workspace_id": map[string]any{
			"type":        "string",
			"description": "Workspace id returned by create_workspace",
		},
		"dir": map[string]any{
			"type":        "string",
			"description": "Repository directory relative to the workspace root (default: workspace root)",
		},
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

func schema(extra map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": baseProperties(extra),
		"required":   required,
	}
}

func wsDir(params map[string]any) (string, string, error) {
	workspaceID, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return "", "", err
	}
	return workspaceID, tools.OptionalString(params, "dir", vcs.DefaultDir), nil
}

// NewTools builds the full set of git tools over the shared vcs layer.
func NewTools(g *vcs.Git) []*Tool {
	return []*Tool{
		{
			git:         g,
			name:        "git_clone",
			description: "Clone a git repository into a directory inside the workspace.",
			schema: schema(map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Repository URL to clone",
				},
			}, "workspace_id", "url"),
			required: []string{"workspace_id", "url"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				url, err := tools.RequireString(params, "url")
				if err != nil {
					return nil, err
				}
				return g.Clone(ctx, workspaceID, dir, url)
			},
		},
		{
			git:         g,
			name:        "git_commit",
			description: "Commit changes in the workspace repository. Optionally stages all changes first.",
			schema: schema(map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "Commit message",
				},
				"add_all": map[string]any{
					"type":        "boolean",
					"description": "Stage all changes before committing (default true)",
				},
			}, "workspace_id", "message"),
			required: []string{"workspace_id", "message"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				message, err := tools.RequireString(params, "message")
				if err != nil {
					return nil, err
				}
				addAll := tools.OptionalBool(params, "add_all", true)
				return g.Commit(ctx, workspaceID, dir, message, addAll)
			},
		},
		{
			git:         g,
			name:        "git_diff_staged",
			description: "Show the diff of staged changes in the workspace repository.",
			schema:      schema(nil, "workspace_id"),
			required:    []string{"workspace_id"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				return g.DiffStaged(ctx, workspaceID, dir)
			},
		},
		{
			git:         g,
			name:        "git_push",
			description: "Push a branch to a remote. Defaults to origin and main.",
			schema: schema(map[string]any{
				"remote": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Remote name (default %q)", vcs.DefaultRemote),
				},
				"branch": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Branch name (default %q)", vcs.DefaultBranch),
				},
			}, "workspace_id"),
			required: []string{"workspace_id"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				remote := tools.OptionalString(params, "remote", vcs.DefaultRemote)
				branch := tools.OptionalString(params, "branch", vcs.DefaultBranch)
				return g.Push(ctx, workspaceID, dir, remote, branch)
			},
		},
		{
			git:         g,
			name:        "git_pull",
			description: "Pull a branch from a remote. Defaults to origin and main.",
			schema: schema(map[string]any{
				"remote": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Remote name (default %q)", vcs.DefaultRemote),
				},
				"branch": map[string]any{
					"type":        "string",
					"description": fmt.Sprintf("Branch name (default %q)", vcs.DefaultBranch),
				},
			}, "workspace_id"),
			required: []string{"workspace_id"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				remote := tools.OptionalString(params, "remote", vcs.DefaultRemote)
				branch := tools.OptionalString(params, "branch", vcs.DefaultBranch)
				return g.Pull(ctx, workspaceID, dir, remote, branch)
			},
		},
		{
			git:         g,
			name:        "git_create_branch",
			description: "Create a new branch in the workspace repository without switching to it.",
			schema: schema(map[string]any{
				"branch": map[string]any{
					"type":        "string",
					"description": "Name of the branch to create",
				},
			}, "workspace_id", "branch"),
			required: []string{"workspace_id", "branch"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				branch, err := tools.RequireString(params, "branch")
				if err != nil {
					return nil, err
				}
				return g.CreateBranch(ctx, workspaceID, dir, branch)
			},
		},
		{
			git:         g,
			name:        "git_checkout_branch",
			description: "Switch the workspace repository to an existing branch.",
			schema: schema(map[string]any{
				"branch": map[string]any{
					"type":        "string",
					"description": "Name of the branch to check out",
				},
			}, "workspace_id", "branch"),
			required: []string{"workspace_id", "branch"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				branch, err := tools.RequireString(params, "branch")
				if err != nil {
					return nil, err
				}
				return g.CheckoutBranch(ctx, workspaceID, dir, branch)
			},
		},
		{
			git:         g,
			name:        "git_status",
			description: "Show the working tree status of the workspace repository.",
			schema:      schema(nil, "workspace_id"),
			required:    []string{"workspace_id"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				return g.Status(ctx, workspaceID, dir)
			},
		},
		{
			git:         g,
			name:        "git_log",
			description: "Show recent commits of the workspace repository, one line each.",
			schema: schema(map[string]any{
				"max_count": map[string]any{
					"type":        "integer",
					"description": "Maximum number of commits to show (default 20)",
				},
			}, "workspace_id"),
			required: []string{"workspace_id"},
			run: func(ctx context.Context, g *vcs.Git, params map[string]any) (*runner.Result, error) {
				workspaceID, dir, err := wsDir(params)
				if err != nil {
					return nil, err
				}
				maxCount := 0
				if v, ok := params["max_count"].(float64); ok {
					maxCount = int(v)
				} else if v, ok := params["max_count"].(int); ok {
					maxCount = v
				}
				return g.Log(ctx, workspaceID, dir, maxCount)
			},
		},
	}
}
