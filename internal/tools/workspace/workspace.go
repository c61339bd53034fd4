// Package workspace exposes workspace lifecycle operations as tools.
package workspace

import (
	"context"
	"fmt"
	"strings"

	"github.com/starbridge-ai/starbridge/internal/tools"
	"github.com/starbridge-ai/starbridge/internal/workspace"
)

// CreateTool provisions a fresh workspace directory.
type CreateTool struct {
	manager *workspace.Manager
}

// NewCreateTool creates the create_workspace tool.
func NewCreateTool(manager *workspace.Manager) *CreateTool {
	return &CreateTool{manager: manager}
}

func (t *CreateTool) Name() string { return "create_workspace" }

func (t *CreateTool) Description() string {
	return "Create a new isolated workspace directory for a project. Returns the workspace id used by all other tools."
}

func (t *CreateTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"project_name": map[string]any{
				"type":        "string",
				"description": "Human-readable project name, sanitized into the workspace id",
			},
		},
		"required": []string{"project_name"},
	}
}

func (t *CreateTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "project_name")
	return err
}

func (t *CreateTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	projectName, err := tools.RequireString(params, "project_name")
	if err != nil {
		return nil, err
	}
	ws, err := t.manager.Create(ctx, projectName)
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		Output:  ws.ID,
		Success: true,
		Metadata: map[string]any{
			"workspace_id": ws.ID,
			"path":         ws.Path,
		},
	}, nil
}

// DeleteTool removes a workspace and everything in it.
type DeleteTool struct {
	manager *workspace.Manager
}

// NewDeleteTool creates the delete_workspace tool.
func NewDeleteTool(manager *workspace.Manager) *DeleteTool {
	return &DeleteTool{manager: manager}
}

func (t *DeleteTool) Name() string { return "delete_workspace" }

func (t *DeleteTool) Description() string {
	return "Delete a workspace directory and all of its contents. Irreversible."
}

func (t *DeleteTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workspace_id": map[string]any{
				"type":        "string",
				"description": "Workspace id returned by create_workspace",
			},
		},
		"required": []string{"workspace_id"},
	}
}

func (t *DeleteTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "workspace_id")
	return err
}

func (t *DeleteTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	id, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return nil, err
	}
	if err := t.manager.Delete(ctx, id); err != nil {
		return nil, err
	}
	return &tools.Result{
		Output:  fmt.Sprintf("workspace %s deleted", id),
		Success: true,
	}, nil
}

// ListTool enumerates known workspaces.
type ListTool struct {
	manager *workspace.Manager
}

// NewListTool creates the list_workspaces tool.
func NewListTool(manager *workspace.Manager) *ListTool {
	return &ListTool{manager: manager}
}

func (t *ListTool) Name() string { return "list_workspaces" }

func (t *ListTool) Description() string {
	return "List existing workspace ids under the sandbox root."
}

func (t *ListTool) InputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *ListTool) Validate(map[string]any) error { return nil }

func (t *ListTool) Execute(ctx context.Context, _ map[string]any) (*tools.Result, error) {
	records, err := t.manager.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return &tools.Result{
		Output:  strings.Join(ids, "\n"),
		Success: true,
		Metadata: map[string]any{
			"count": len(ids),
		},
	}, nil
}
