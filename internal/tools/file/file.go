// Package file exposes workspace file operations as tools.
//
// Security: every path parameter is interpreted relative to the workspace
// root and passes through the sandbox resolver before any filesystem access.
package file

import (
	"context"
	"fmt"
	"strings"

	"github.com/starbridge-ai/starbridge/internal/fileops"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

func workspaceProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Workspace id returned by create_workspace",
	}
}

func pathProperty(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": desc,
	}
}

// WriteTool writes file content inside a workspace.
type WriteTool struct {
	files *fileops.Service
}

// NewWriteTool creates the write_file tool.
func NewWriteTool(files *fileops.Service) *WriteTool {
	return &WriteTool{files: files}
}

func (t *WriteTool) Name() string { return "write_file" }

func (t *WriteTool) Description() string {
	return "Write content to a file in the workspace, creating parent directories as needed. Overwrites existing files."
}

func (t *WriteTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workspace_id": workspaceProperty(),
			"path":         pathProperty("File path relative to the workspace root"),
			"content": map[string]any{
				"type":        "string",
				"description": "Full file content to write",
			},
		},
		"required": []string{"workspace_id", "path", "content"},
	}
}

func (t *WriteTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "workspace_id"); err != nil {
		return err
	}
	if _, err := tools.RequireString(params, "path"); err != nil {
		return err
	}
	// Content may legitimately be empty; only its type is checked.
	if v, ok := params["content"]; ok {
		if _, isStr := v.(string); !isStr {
			return fmt.Errorf("%w: parameter \"content\" must be a string, got %T", sandbox.ErrInvalidArgument, v)
		}
	}
	return nil
}

func (t *WriteTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	workspaceID, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return nil, err
	}
	path, err := tools.RequireString(params, "path")
	if err != nil {
		return nil, err
	}
	content := tools.OptionalString(params, "content", "")
	if err := t.files.Write(ctx, workspaceID, path, content); err != nil {
		return nil, err
	}
	return &tools.Result{
		Output:  fmt.Sprintf("wrote %d bytes to %s", len(content), path),
		Success: true,
		Metadata: map[string]any{
			"bytes": len(content),
			"path":  path,
		},
	}, nil
}

// ReadTool reads file content from a workspace.
type ReadTool struct {
	files *fileops.Service
}

// NewReadTool creates the read_file tool.
func NewReadTool(files *fileops.Service) *ReadTool {
	return &ReadTool{files: files}
}

func (t *ReadTool) Name() string { return "read_file" }

func (t *ReadTool) Description() string {
	return "Read the content of a file in the workspace."
}

func (t *ReadTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workspace_id": workspaceProperty(),
			"path":         pathProperty("File path relative to the workspace root"),
		},
		"required": []string{"workspace_id", "path"},
	}
}

func (t *ReadTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "workspace_id"); err != nil {
		return err
	}
	_, err := tools.RequireString(params, "path")
	return err
}

func (t *ReadTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	workspaceID, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return nil, err
	}
	path, err := tools.RequireString(params, "path")
	if err != nil {
		return nil, err
	}
	content, err := t.files.Read(ctx, workspaceID, path)
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		Output:  content,
		Success: true,
	}, nil
}

// ListTool lists directory entries in a workspace.
type ListTool struct {
	files *fileops.Service
}

// NewListTool creates the list_directory tool.
func NewListTool(files *fileops.Service) *ListTool {
	return &ListTool{files: files}
}

func (t *ListTool) Name() string { return "list_directory" }

func (t *ListTool) Description() string {
	return "List the entries of a directory in the workspace. Defaults to the workspace root."
}

func (t *ListTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workspace_id": workspaceProperty(),
			"path":         pathProperty("Directory path relative to the workspace root (default: workspace root)"),
		},
		"required": []string{"workspace_id"},
	}
}

func (t *ListTool) Validate(params map[string]any) error {
	_, err := tools.RequireString(params, "workspace_id")
	return err
}

func (t *ListTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	workspaceID, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return nil, err
	}
	path := tools.OptionalString(params, "path", ".")
	entries, err := t.files.List(ctx, workspaceID, path)
	if err != nil {
		return nil, err
	}
	return &tools.Result{
		Output:  strings.Join(entries, "\n"),
		Success: true,
		Metadata: map[string]any{
			"count": len(entries),
		},
	}, nil
}

// MkdirTool creates directories inside a workspace.
type MkdirTool struct {
	files *fileops.Service
}

// NewMkdirTool creates the create_directory tool.
func NewMkdirTool(files *fileops.Service) *MkdirTool {
	return &MkdirTool{files: files}
}

func (t *MkdirTool) Name() string { return "create_directory" }

func (t *MkdirTool) Description() string {
	return "Create a directory in the workspace, including any missing parents. Succeeds if it already exists."
}

func (t *MkdirTool) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workspace_id": workspaceProperty(),
			"path":         pathProperty("Directory path relative to the workspace root"),
		},
		"required": []string{"workspace_id", "path"},
	}
}

func (t *MkdirTool) Validate(params map[string]any) error {
	if _, err := tools.RequireString(params, "workspace_id"); err != nil {
		return err
	}
	_, err := tools.RequireString(params, "path")
	return err
}

func (t *MkdirTool) Execute(ctx context.Context, params map[string]any) (*tools.Result, error) {
	workspaceID, err := tools.RequireString(params, "workspace_id")
	if err != nil {
		return nil, err
	}
	path, err := tools.RequireString(params, "path")
	if err != nil {
		return nil, err
	}
	if err := t.files.Mkdir(ctx, workspaceID, path); err != nil {
		return nil, err
	}
	return &tools.Result{
		Output:  fmt.Sprintf("created directory %s", path),
		Success: true,
	}, nil
}
