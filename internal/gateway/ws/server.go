// Package ws implements the WebSocket transport for tool invocation.
// Clients connect, send one JSON invoke frame at a time, and receive a
// result frame per invocation. Frames on a single connection are processed
// sequentially in arrival order.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

const writeTimeout = 10 * time.Second

// InvokeFrame is a single tool invocation request from the client.
type InvokeFrame struct {
	ID     string         `json:"id"`     // Client-chosen request id, echoed back.
	Tool   string         `json:"tool"`   // Registered tool name.
	Params map[string]any `json:"params"` // Tool parameters.
}

// ResultFrame is the server's reply to one InvokeFrame.
type ResultFrame struct {
	ID       string         `json:"id"`
	Output   string         `json:"output,omitempty"`
	Success  bool           `json:"success"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Kind     string         `json:"kind,omitempty"` // Stable error kind, empty on success.
}

// Server upgrades HTTP connections and serves tool invocations over them.
type Server struct {
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
}

// NewServer creates a WebSocket tool server over the dispatcher.
func NewServer(dispatcher *tools.Dispatcher, logger *slog.Logger) *Server {
	return &Server{dispatcher: dispatcher, logger: logger}
}

// Handler returns an http.Handler that upgrades connections to WebSocket.
// Authentication happens in the HTTP gateway before the upgrade.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleUpgrade)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{"starbridge-v1"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close(websocket.StatusNormalClosure, "connection closed")

	s.logger.Info("websocket client connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.logger.Info("websocket client disconnected")
			} else if !errors.Is(err, context.Canceled) {
				s.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		var frame InvokeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if werr := s.write(ctx, conn, ResultFrame{
				Error: "malformed frame: " + err.Error(),
				Kind:  sandbox.Kind(sandbox.ErrInvalidArgument),
			}); werr != nil {
				return
			}
			continue
		}

		if werr := s.write(ctx, conn, s.invoke(ctx, frame)); werr != nil {
			return
		}
	}
}

// invoke runs one frame through the dispatcher and shapes the reply.
func (s *Server) invoke(ctx context.Context, frame InvokeFrame) ResultFrame {
	reply := ResultFrame{ID: frame.ID}
	if frame.Tool == "" {
		reply.Error = "tool name is required"
		reply.Kind = sandbox.Kind(sandbox.ErrInvalidArgument)
		return reply
	}

	result, err := s.dispatcher.Call(ctx, frame.Tool, frame.Params)
	if err != nil {
		reply.Error = err.Error()
		if errors.Is(err, tools.ErrUnknownOperation) {
			reply.Kind = "unknown_operation"
		} else {
			reply.Kind = sandbox.Kind(err)
		}
		return reply
	}

	reply.Output = result.Output
	reply.Success = result.Success
	reply.Metadata = result.Metadata
	return reply
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, frame ResultFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		s.logger.Warn("websocket write failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}
