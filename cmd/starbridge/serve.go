package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/starbridge-ai/starbridge/internal/gateway/mcpserver"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tools over MCP on stdio (default mode)",
	RunE:  runServe,
}

func init() {
	// Register flags on both root and serve so that
	// `starbridge --config path` and `starbridge serve --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringVar(&serveConfigPath, "config", "", "path to config file")
	}
}

// runServe starts the stdio MCP server. Logs go to stderr; stdout carries
// the protocol stream.
func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(goutils.Env("STARBRIDGE_CONFIG", serveConfigPath))
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcpserver.New(sc.Dispatcher, version, logger)
	logger.Info("serving tools over stdio",
		slog.String("sandbox_root", cfg.SandboxRoot),
		slog.Any("tools", sc.Registry.List()),
	)

	if err := srv.ServeStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
