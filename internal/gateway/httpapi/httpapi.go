// Package httpapi implements the HTTP API gateway for starbridge.
//
// Security:
//   - API key authentication on every /v1 request (constant-time comparison)
//   - Request body size limits (default 16 MB)
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/okapi"

	"github.com/starbridge-ai/starbridge/internal/observability"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/tools"
)

const defaultMaxRequestSize = 16 << 20 // 16 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	APIKey         string // Bearer key. Empty = no authentication.
	MaxRequestSize int64  // Maximum request body in bytes. 0 = 16 MB default.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway. It exposes the tool registry over REST.
type Gateway struct {
	config     Config
	dispatcher *tools.Dispatcher
	logger     *slog.Logger
	server     *http.Server

	// Extra handlers mounted on the HTTP mux (e.g., the WebSocket endpoint).
	extraRoutes []extraRoute
	okapi       *okapi.Okapi
}

// extraRoute stores an additional handler to be mounted on the HTTP mux.
type extraRoute struct {
	pattern string
	handler http.Handler
}

// NewGateway creates an HTTP API gateway over the tool dispatcher.
func NewGateway(cfg Config, dispatcher *tools.Dispatcher, logger *slog.Logger) *Gateway {
	size := cfg.MaxRequestSize
	if size <= 0 {
		size = defaultMaxRequestSize
	}
	return &Gateway{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     logger,
		okapi:      okapi.New(okapi.WithMaxMultipartMemory(size)),
	}
}

// WithHandler mounts an additional handler on the HTTP mux at the given
// pattern. Used for the WebSocket endpoint alongside the API routes.
func (g *Gateway) WithHandler(pattern string, handler http.Handler) *Gateway {
	g.extraRoutes = append(g.extraRoutes, extraRoute{pattern: pattern, handler: handler})
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	group := g.okapi.Group("/v1", g.authenticate)

	group.Get("/tools", g.handleListTools,
		okapi.DocSummary("List available tools with their parameter schemas"),
		okapi.DocTags("Tools"),
		okapi.DocResponse([]ToolDescriptor{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	group.Post("/tools/{name}", g.handleInvoke,
		okapi.DocSummary("Invoke a tool by name"),
		okapi.DocTags("Tools"),
		okapi.DocPathParam("name", "string", "Tool name, e.g. write_file"),
		okapi.DocRequestBody(InvokeRequest{}),
		okapi.DocResponse(InvokeResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)

	// Extra handlers (e.g., WebSocket endpoint).
	for _, er := range g.extraRoutes {
		g.okapi.HandleStd("GET", er.pattern, er.handler.ServeHTTP)
	}

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))
	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(_ context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Handlers ---

// ToolDescriptor describes one registered tool in GET /v1/tools.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// InvokeRequest is the JSON body for POST /v1/tools/{name}.
type InvokeRequest struct {
	Params map[string]any `json:"params"`
}

// InvokeResponse is the JSON response for a completed tool invocation.
type InvokeResponse struct {
	Output        string         `json:"output"`
	Success       bool           `json:"success"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

func (g *Gateway) handleListTools(c *okapi.Context) error {
	all := g.dispatcher.Registry().All()
	resp := make([]ToolDescriptor, 0, len(all))
	for _, t := range all {
		resp = append(resp, ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return c.OK(resp)
}

func (g *Gateway) handleInvoke(c *okapi.Context) error {
	name := c.Param("name")
	correlationID := newCorrelationID()

	var req InvokeRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}

	g.logger.Info("http tool invocation",
		slog.String("tool", name),
		slog.String("correlation_id", correlationID),
	)

	result, err := g.dispatcher.Call(c.Context(), name, req.Params)
	if err != nil {
		return g.toolError(c, name, correlationID, err)
	}

	return c.OK(InvokeResponse{
		Output:        result.Output,
		Success:       result.Success,
		Metadata:      result.Metadata,
		CorrelationID: correlationID,
	})
}

// toolError maps dispatch errors to HTTP responses. Sandbox violations get a
// dedicated 403 so callers can distinguish policy rejections from bad input.
func (g *Gateway) toolError(c *okapi.Context, name, correlationID string, err error) error {
	kind := sandbox.Kind(err)
	body := ErrorBody{Error: err.Error(), Kind: kind}

	var status int
	switch {
	case errors.Is(err, tools.ErrUnknownOperation):
		status = http.StatusNotFound
		body.Kind = "unknown_operation"
	case errors.Is(err, sandbox.ErrViolation):
		status = http.StatusForbidden
	case errors.Is(err, sandbox.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sandbox.ErrInvalidArgument),
		errors.Is(err, sandbox.ErrNotAFile),
		errors.Is(err, sandbox.ErrNotADirectory):
		status = http.StatusBadRequest
	case errors.Is(err, sandbox.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, sandbox.ErrWorkspaceConflict):
		status = http.StatusConflict
	case errors.Is(err, sandbox.ErrTimeout):
		status = http.StatusGatewayTimeout
	default:
		g.logger.Error("tool invocation failed",
			slog.String("tool", name),
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)
		status = http.StatusInternalServerError
		body.Error = "internal error"
	}
	return c.JSON(status, body)
}

// HealthResponse is the JSON response for the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleLiveness is the Kubernetes liveness probe
func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the bearer API key. When no key is configured the
// gateway is open, which is only sane behind a trusted proxy.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		if g.config.APIKey == "" {
			return next(c)
		}
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(g.config.APIKey)) != 1 {
			return c.AbortUnauthorized("invalid API key")
		}
		return next(c)
	}
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
