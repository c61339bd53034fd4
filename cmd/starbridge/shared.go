package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starbridge-ai/starbridge/internal/config"
	"github.com/starbridge-ai/starbridge/internal/fileops"
	"github.com/starbridge-ai/starbridge/internal/observability"
	"github.com/starbridge-ai/starbridge/internal/runner"
	"github.com/starbridge-ai/starbridge/internal/sandbox"
	"github.com/starbridge-ai/starbridge/internal/storage"
	"github.com/starbridge-ai/starbridge/internal/tools"
	filetools "github.com/starbridge-ai/starbridge/internal/tools/file"
	gittools "github.com/starbridge-ai/starbridge/internal/tools/git"
	prompttools "github.com/starbridge-ai/starbridge/internal/tools/prompt"
	shelltools "github.com/starbridge-ai/starbridge/internal/tools/shell"
	wstools "github.com/starbridge-ai/starbridge/internal/tools/workspace"
	"github.com/starbridge-ai/starbridge/internal/vcs"
	"github.com/starbridge-ai/starbridge/internal/workspace"
)

// SharedComponents holds all initialized subsystems that both serve and
// gateway modes require. Built once by initShared, torn down by Cleanup.
type SharedComponents struct {
	Config *config.Config
	Logger *slog.Logger

	Obs        *observability.Observability
	Store      *storage.Store // nil = ledger disabled.
	Resolver   *sandbox.Resolver
	Workspaces *workspace.Manager
	Files      *fileops.Service
	Runner     *runner.Runner
	Git        *vcs.Git
	Registry   *tools.Registry
	Dispatcher *tools.Dispatcher

	cleanups []func()
}

// Cleanup runs all deferred cleanup functions in reverse order.
func (sc *SharedComponents) Cleanup() {
	for i := len(sc.cleanups) - 1; i >= 0; i-- {
		sc.cleanups[i]()
	}
}

func (sc *SharedComponents) addCleanup(fn func()) {
	sc.cleanups = append(sc.cleanups, fn)
}

// initShared performs all common initialization shared between serve and
// gateway modes. Callers must call sc.Cleanup() when done.
func initShared(cfg *config.Config, logger *slog.Logger) (*SharedComponents, error) {
	sc := &SharedComponents{
		Config: cfg,
		Logger: logger,
	}

	// Sandbox root must exist before anything touches it.
	if err := os.MkdirAll(cfg.SandboxRoot, 0750); err != nil {
		return nil, fmt.Errorf("creating sandbox root %s: %w", cfg.SandboxRoot, err)
	}

	// Observability.
	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing observability: %w", err)
	}
	sc.Obs = obs
	sc.addCleanup(func() {
		if obs != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}
	})
	if obs != nil {
		logger.Debug("observability initialized",
			slog.Bool("metrics", obs.Metrics != nil),
			slog.Bool("tracing", obs.Tracer != nil),
		)
	}

	// Workspace ledger (optional).
	store, err := storage.Open(cfg.Storage, cfg.SQLitePath(), logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	sc.Store = store
	if store != nil {
		sc.addCleanup(func() {
			if err := store.Close(); err != nil {
				logger.Error("closing store", slog.String("error", err.Error()))
			}
		})
		logger.Debug("workspace ledger initialized", slog.String("driver", store.Driver()))
	}

	// Path resolver, the security boundary for everything below.
	resolver, err := sandbox.NewResolver(cfg.SandboxRoot, logger)
	if err != nil {
		sc.Cleanup()
		return nil, fmt.Errorf("initializing sandbox resolver: %w", err)
	}
	sc.Resolver = resolver
	logger.Debug("sandbox resolver initialized", slog.String("root", resolver.Root()))

	// Workspace manager.
	var ledger workspace.Ledger
	if store != nil {
		ledger = store
	}
	manager := workspace.NewManager(resolver, ledger, logger)
	if obs.MetricsOrNil() != nil {
		manager = manager.WithMetrics(obs.MetricsOrNil())
	}
	sc.Workspaces = manager

	// File operations.
	sc.Files = fileops.NewService(resolver, fileops.Config{
		MaxFileSizeBytes: cfg.Files.MaxFileSizeBytes,
	}, logger)

	// Command runner.
	run := runner.New(sc.Files, runner.Config{
		DefaultTimeout: cfg.Runner.ExecutionTimeout(),
		DefaultLimits: runner.ResourceLimits{
			MaxCPUSeconds: cfg.Runner.MaxCPUSeconds,
			MaxMemoryMB:   cfg.Runner.MaxMemoryMB,
		},
	}, logger)
	if obs.MetricsOrNil() != nil {
		run = run.WithObserver(obs.MetricsOrNil())
	}
	sc.Runner = run

	// Git operations ride on the runner.
	sc.Git = vcs.New(run, logger)

	// Tool registry.
	registry := tools.NewRegistry()
	registry.Register(wstools.NewCreateTool(manager))
	registry.Register(wstools.NewDeleteTool(manager))
	registry.Register(wstools.NewListTool(manager))
	registry.Register(filetools.NewWriteTool(sc.Files))
	registry.Register(filetools.NewReadTool(sc.Files))
	registry.Register(filetools.NewListTool(sc.Files))
	registry.Register(filetools.NewMkdirTool(sc.Files))
	registry.Register(shelltools.NewRunTool(run))
	registry.Register(prompttools.NewGenerateTool())
	for _, t := range gittools.NewTools(sc.Git) {
		registry.Register(t)
	}
	sc.Registry = registry
	logger.Debug("tools registered", slog.Any("tools", registry.List()))

	// Dispatcher with optional metrics observer.
	var observer tools.Observer
	if obs.MetricsOrNil() != nil {
		observer = obs.MetricsOrNil()
	}
	sc.Dispatcher = tools.NewDispatcher(registry, observer, logger)

	// Health checks.
	if obs != nil && obs.Health != nil && cfg.Observability != nil && cfg.Observability.Health != nil {
		if cfg.Observability.Health.IncludeDB && store != nil {
			obs.Health.AddCheck("database", observability.LedgerCheck(store.Ping))
		}
		if cfg.Observability.Health.IncludeSandbox {
			obs.Health.AddCheck("sandbox_root", observability.SandboxRootCheck(resolver.Root()))
		}
	}

	return sc, nil
}

// newLogger builds the process-wide JSON logger. Output goes to stderr so
// that stdio MCP framing on stdout stays clean.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadConfig reads the config file when one is given or exists at the
// default path, and falls back to environment-only configuration.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.Load(config.DefaultConfigPath())
	}
	return config.FromEnv()
}
