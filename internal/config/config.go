// Package config handles loading and validating starbridge configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for starbridge.
type Config struct {
	SandboxRoot   string               `json:"sandbox_root" yaml:"sandbox_root"` // Absolute path confining all workspaces. Required. Override: STARBRIDGE_SANDBOX_ROOT env var.
	Files         FilesConfig          `json:"files" yaml:"files"`
	Runner        RunnerConfig         `json:"runner" yaml:"runner"`
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`             // nil = workspace ledger disabled.
	Gateways      GatewaysConfig       `json:"gateways" yaml:"gateways"`                               // Absent = stdio only.
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled.
	Retention     *RetentionConfig     `json:"retention,omitempty" yaml:"retention,omitempty"`         // nil = no automatic cleanup.
}

// FilesConfig bounds file operations.
type FilesConfig struct {
	MaxFileSizeBytes int64 `json:"max_file_size_bytes" yaml:"max_file_size_bytes"` // Default: 10 MB.
}

// RunnerConfig bounds sandboxed command execution.
type RunnerConfig struct {
	MaxExecutionSeconds int `json:"max_execution_seconds" yaml:"max_execution_seconds"` // Default: 60.
	MaxCPUSeconds       int `json:"max_cpu_seconds" yaml:"max_cpu_seconds"`             // Default: 120.
	MaxMemoryMB         int `json:"max_memory_mb" yaml:"max_memory_mb"`                 // Default: 1024.
}

// ExecutionTimeout returns the wall-clock limit with a default of 60s.
func (r *RunnerConfig) ExecutionTimeout() time.Duration {
	if r != nil && r.MaxExecutionSeconds > 0 {
		return time.Duration(r.MaxExecutionSeconds) * time.Second
	}
	return 60 * time.Second
}

// StorageConfig configures the workspace ledger backend.
// When nil, no ledger is kept and the filesystem is the only source of truth.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`                         // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`     // SQLite-specific settings.
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"` // PostgreSQL-specific settings.
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: <sandbox_root>/.starbridge/ledger.db.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"` // Override: STARBRIDGE_DB_DSN env var.
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 25
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 5
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// GatewaysConfig defines which protocol surfaces are enabled. Nil pointers
// mean the gateway is not configured. The stdio MCP transport is always
// available through the serve command and needs no configuration.
type GatewaysConfig struct {
	HTTP      *HTTPGatewayConfig      `json:"http,omitempty" yaml:"http,omitempty"`
	WebSocket *WebSocketGatewayConfig `json:"websocket,omitempty" yaml:"websocket,omitempty"`
}

// HTTPGatewayConfig configures the HTTP API gateway.
type HTTPGatewayConfig struct {
	Enabled             bool   `json:"enabled" yaml:"enabled"`
	ListenAddr          string `json:"listen_addr" yaml:"listen_addr"`                       // Default: ":8080".
	APIKey              string `json:"api_key,omitempty" yaml:"api_key,omitempty"`           // Override: STARBRIDGE_API_KEY env var. Empty = no auth.
	MaxRequestSizeBytes int64  `json:"max_request_size_bytes" yaml:"max_request_size_bytes"` // Default: 16 MB.
}

// Addr returns the listen address with a default of ":8080".
func (h *HTTPGatewayConfig) Addr() string {
	if h != nil && h.ListenAddr != "" {
		return h.ListenAddr
	}
	return ":8080"
}

// MaxRequestSize returns the request body cap with a default of 16 MB.
func (h *HTTPGatewayConfig) MaxRequestSize() int64 {
	if h != nil && h.MaxRequestSizeBytes > 0 {
		return h.MaxRequestSizeBytes
	}
	return 16 << 20
}

// WebSocketGatewayConfig configures the WebSocket tool transport. It is
// served by the HTTP gateway and requires it to be enabled.
type WebSocketGatewayConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/ws".
}

// WSPath returns the WebSocket path with a default of "/ws".
func (w *WebSocketGatewayConfig) WSPath() string {
	if w != nil && w.Path != "" {
		return w.Path
	}
	return "/ws"
}

// ObservabilityConfig configures metrics, tracing, and health checks.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	Health  *HealthConfig  `json:"health,omitempty" yaml:"health,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// MetricsPath returns the exposition path with a default of "/metrics".
func (m *MetricsConfig) MetricsPath() string {
	if m != nil && m.Path != "" {
		return m.Path
	}
	return "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "starbridge"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0-1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// HealthConfig configures dependency health checks for readiness probes.
type HealthConfig struct {
	IncludeDB      bool `json:"include_db" yaml:"include_db"`
	IncludeSandbox bool `json:"include_sandbox" yaml:"include_sandbox"`
}

// RetentionConfig configures scheduled cleanup of old workspaces.
// When nil, workspaces live until explicitly deleted.
type RetentionConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	MaxAgeHours int    `json:"max_age_hours" yaml:"max_age_hours"` // Default: 168 (7 days).
	Schedule    string `json:"schedule" yaml:"schedule"`           // Cron expression. Default: "0 * * * *" (hourly).
}

// MaxAge returns the workspace age limit with a default of 7 days.
func (r *RetentionConfig) MaxAge() time.Duration {
	if r != nil && r.MaxAgeHours > 0 {
		return time.Duration(r.MaxAgeHours) * time.Hour
	}
	return 168 * time.Hour
}

// CronSchedule returns the sweep schedule with a default of hourly.
func (r *RetentionConfig) CronSchedule() string {
	if r != nil && r.Schedule != "" {
		return r.Schedule
	}
	return "0 * * * *"
}

// DefaultConfigPath returns the default config file path (~/.starbridge/config.json).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/starbridge.json" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".starbridge", "config.json")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// FromEnv builds a config without a file, from env vars and defaults. Used
// when no config path is given.
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if envRoot := os.Getenv("STARBRIDGE_SANDBOX_ROOT"); envRoot != "" {
		c.SandboxRoot = envRoot
	}
	if envDSN := os.Getenv("STARBRIDGE_DB_DSN"); envDSN != "" {
		if c.Storage == nil {
			c.Storage = &StorageConfig{Driver: "postgres"}
		}
		if c.Storage.Postgres == nil {
			c.Storage.Postgres = &PostgresStorageConfig{}
		}
		c.Storage.Postgres.DSN = envDSN
	}
	if envKey := os.Getenv("STARBRIDGE_API_KEY"); envKey != "" {
		if c.Gateways.HTTP == nil {
			c.Gateways.HTTP = &HTTPGatewayConfig{Enabled: true}
		}
		c.Gateways.HTTP.APIKey = envKey
	}
}

// SQLitePath returns the ledger database path, derived from the sandbox root
// when not configured explicitly.
func (c *Config) SQLitePath() string {
	if c.Storage != nil && c.Storage.SQLite != nil && c.Storage.SQLite.Path != "" {
		return c.Storage.SQLite.Path
	}
	return filepath.Join(c.SandboxRoot, ".starbridge", "ledger.db")
}

// Validate checks structural requirements. The sandbox root is the security
// boundary of the whole server, so a missing or relative value is fatal.
func (c *Config) Validate() error {
	if c.SandboxRoot == "" {
		return fmt.Errorf("sandbox_root is required (set it in the config file or STARBRIDGE_SANDBOX_ROOT env var)")
	}
	if !filepath.IsAbs(c.SandboxRoot) {
		return fmt.Errorf("sandbox_root %q must be an absolute path", c.SandboxRoot)
	}
	if c.Files.MaxFileSizeBytes < 0 {
		return fmt.Errorf("files.max_file_size_bytes must not be negative")
	}
	if c.Runner.MaxExecutionSeconds < 0 {
		return fmt.Errorf("runner.max_execution_seconds must not be negative")
	}
	if c.Runner.MaxMemoryMB < 0 {
		return fmt.Errorf("runner.max_memory_mb must not be negative")
	}
	if c.Storage != nil && c.Storage.Driver != "" {
		switch c.Storage.Driver {
		case "sqlite", "postgres":
			// valid
		default:
			return fmt.Errorf("storage.driver %q is not supported (use sqlite or postgres)", c.Storage.Driver)
		}
	}
	if c.Storage != nil && c.Storage.Driver == "postgres" {
		if c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required for the postgres driver (set STARBRIDGE_DB_DSN env var)")
		}
	}
	if c.Gateways.WebSocket != nil && c.Gateways.WebSocket.Enabled {
		if c.Gateways.HTTP == nil || !c.Gateways.HTTP.Enabled {
			return fmt.Errorf("gateways.websocket requires gateways.http to be enabled")
		}
	}
	if c.Observability != nil && c.Observability.Tracing != nil && c.Observability.Tracing.Enabled {
		if c.Observability.Tracing.Endpoint == "" {
			return fmt.Errorf("observability.tracing.endpoint is required when tracing is enabled")
		}
		switch p := c.Observability.Tracing.Protocol; p {
		case "", "grpc", "http":
			// valid
		default:
			return fmt.Errorf("observability.tracing.protocol %q is not supported (use grpc or http)", p)
		}
	}
	if c.Retention != nil && c.Retention.Enabled && c.Retention.MaxAgeHours < 0 {
		return fmt.Errorf("retention.max_age_hours must not be negative")
	}
	return nil
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
