// Package shell exposes sandboxed command execution as a tool.
//
// Security: commands run with a workspace-confined working directory, a
// sanitized environment, and CPU, memory, and wall-clock limits. A nonzero
// exit code is an ordinary result; only spawn failures and timeouts are errors.
package shell

import (
	"context"
	"fmt"
	"time"

	"github.com/starbridge-ai/starbridge/internal/runner"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

// RunTool executes a command inside a workspace.
type RunTool struct {
	runner *runner.Runner
}

// NewRunTool creates the run_command tool.
func NewRunTool(r *runner.Runner) *RunTool {
	return &RunTool{runner: r}
}

func (t *RunTool) Name() string { return "run_command" }

func (t *RunTool) Description() string {
	return "Run a command inside the workspace with resource limits. Returns stdout, stderr, and the exit code."
}

func (t *RunTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workspace_id": map[string]any{
				"type":        "string",
				"description": "Workspace id returned by create_workspace",
			},
			"command": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Program and arguments as an argv list, not a shell string",
			},
			"dir": map[string]any{
				"type":        "string",
				"description": "Working directory relative to the workspace root (default: workspace root)",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Wall-clock timeout in seconds (default: server limit)",
			},
			"env": map[string]any{
				"type":        "object",
				"description": "Extra environment variables for the command",
			},
		},
		"required": []string{"workspace_id", "command"},
	}
}

func (t *RunTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "workspace_id"); err != nil {
		return err
	}
	argv, err := argvParam(params)
	if err != nil {
		return err
	}
	if len(argv) == 0 {
		return fmt.Errorf("%w: command must not be empty", sandbox.ErrInvalidArgument)
	}
	return nil
}

func (t *RunTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	workspaceID, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return nil, err
	}
	argv, err := argvParam(params)
	if err != nil {
		return nil, err
	}

	req := runner.Request{
		WorkspaceID: workspaceID,
		RelativeDir: tools.OptionalString(params, "dir", "."),
		Argv:        argv,
		Env:         envParam(params),
	}
	if secs, ok := numberParam(params, "timeout_seconds"); ok && secs > 0 {
		req.Timeout = time.Duration(secs) * time.Second
	}

	res, err := t.runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

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
			"command":     res.Command,
			"returncode":  res.ExitCode,
			"duration_ms": res.Duration.Milliseconds(),
		},
	}, nil
}

// argvParam accepts both []string and the []any produced by JSON decoding.
func argvParam(params map[string]any) ([]string, error) {
	v, ok := params["command"]
	if !ok {
		return nil, fmt.Errorf("%w: missing required parameter \"command\"", sandbox.ErrInvalidArgument)
	}
	switch cmd := v.(type) {
	case []string:
		return cmd, nil
	case []any:
		argv := make([]string, 0, len(cmd))
		for _, item := range cmd {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: command elements must be strings, got %T", sandbox.ErrInvalidArgument, item)
			}
			argv = append(argv, s)
		}
		return argv, nil
	default:
		return nil, fmt.Errorf("%w: parameter \"command\" must be an array of strings, got %T", sandbox.ErrInvalidArgument, v)
	}
}

func envParam(params map[string]any) map[string]string {
	raw, ok := params["env"].(map[string]any)
	if !ok {
		return nil
	}
	env := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			env[k] = s
		}
	}
	return env
}

func numberParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
