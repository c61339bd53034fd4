// Package mcpserver exposes the tool registry over the Model Context
// Protocol on stdio, so MCP-capable agents can drive the sandbox
// without any network gateway.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

// Server bridges the tool dispatcher onto an MCP server instance.
type Server struct {
	dispatcher *tools.Dispatcher
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// New builds an MCP server advertising every registered tool.
func New(dispatcher *tools.Dispatcher, version string, logger *slog.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		logger:     logger,
		mcpServer: server.NewMCPServer(
			"starbridge",
			version,
			server.WithToolCapabilities(false),
		),
	}

	for _, t := range dispatcher.Registry().All() {
		s.mcpServer.AddTool(toMCPTool(t), s.handlerFor(t.Name()))
	}

	return s
}

// ServeStdio blocks serving MCP requests on stdin/stdout until the
// context is canceled or the stream closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.InfoContext(ctx, "mcp stdio server starting",
		slog.Int("tools", len(s.dispatcher.Registry().List())),
	)
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying server, mainly for tests.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func toMCPTool(t tools.Tool) mcp.Tool {
	schema, err := json.Marshal(t.InputSchema())
	if err != nil {
		// Schemas are static maps of strings; marshal cannot fail for
		// well-formed tools. Fall back to an empty object schema.
		schema = []byte(`{"type":"object"}`)
	}
	return mcp.Tool{
		Name:           t.Name(),
		Description:    t.Description(),
		RawInputSchema: json.RawMessage(schema),
	}
}

func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := req.GetArguments()
		if params == nil {
			params = map[string]any{}
		}

		result, err := s.dispatcher.Call(ctx, name, params)
		if err != nil {
			if errors.Is(err, tools.ErrUnknownOperation) {
				return nil, err
			}
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", sandbox.Kind(err), err)), nil
		}

		out := mcp.NewToolResultText(result.Output)
		if !result.Success {
			out.IsError = true
		}
		return out, nil
	}
}
