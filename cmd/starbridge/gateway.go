package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"

	"github.com/starbridge-ai/starbridge/internal/config"
	"github.com/starbridge-ai/starbridge/internal/gateway/httpapi"
	"github.com/starbridge-ai/starbridge/internal/gateway/ws"
	"github.com/starbridge-ai/starbridge/internal/janitor"
)

var (
	gatewayConfigPath string
	gatewayPort       string
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start in gateway mode (HTTP API, WebSocket)",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().StringVar(&gatewayConfigPath, "config", "", "path to config file")
	gatewayCmd.Flags().StringVar(&gatewayPort, "port", "", "override HTTP listen address (e.g. :8080)")
}

// runGateway starts starbridge in gateway mode (HTTP server, WebSocket).
func runGateway(_ *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig(goutils.Env("STARBRIDGE_CONFIG", gatewayConfigPath))
	if err != nil {
		return err
	}

	// Apply CLI overrides.
	if gatewayPort != "" {
		if cfg.Gateways.HTTP == nil {
			cfg.Gateways.HTTP = &config.HTTPGatewayConfig{Enabled: true}
		}
		cfg.Gateways.HTTP.ListenAddr = gatewayPort
	}
	if cfg.Gateways.HTTP == nil || !cfg.Gateways.HTTP.Enabled {
		return fmt.Errorf("gateway mode requires gateways.http.enabled (or --port)")
	}

	logger.Info("starting in gateway mode", slog.String("addr", cfg.Gateways.HTTP.Addr()))

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Retention janitor (optional, needs the ledger).
	var ledger janitor.Lister
	if sc.Store != nil {
		ledger = sc.Store
	}
	jan, err := janitor.New(cfg.Retention, ledger, sc.Workspaces, logger)
	if err != nil {
		return err
	}
	if jan != nil {
		cancelJanitor := jan.Start(ctx)
		defer cancelJanitor()
	}

	// HTTP gateway with optional observability endpoints.
	gwCfg := httpapi.Config{
		ListenAddr:     cfg.Gateways.HTTP.Addr(),
		APIKey:         cfg.Gateways.HTTP.APIKey,
		MaxRequestSize: cfg.Gateways.HTTP.MaxRequestSize(),
	}
	if m := sc.Obs.MetricsOrNil(); m != nil {
		gwCfg.MetricsRegistry = m.Registry
		gwCfg.Metrics = m
		if cfg.Observability != nil && cfg.Observability.Metrics != nil {
			gwCfg.MetricsPath = cfg.Observability.Metrics.MetricsPath()
		}
	}
	if sc.Obs != nil {
		gwCfg.HealthChecker = sc.Obs.Health
		gwCfg.Tracer = sc.Obs.TracerOrNil()
	}

	gw := httpapi.NewGateway(gwCfg, sc.Dispatcher, logger)

	// WebSocket transport rides on the HTTP server.
	if cfg.Gateways.WebSocket != nil && cfg.Gateways.WebSocket.Enabled {
		wsServer := ws.NewServer(sc.Dispatcher, logger)
		gw.WithHandler(cfg.Gateways.WebSocket.WSPath(), wsServer.Handler())
		logger.Debug("websocket transport mounted",
			slog.String("path", cfg.Gateways.WebSocket.WSPath()),
		)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- gw.Start(ctx)
	}()

	// Wait for signal or gateway error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("gateway exited with error", slog.String("error", err.Error()))
			return err
		}
		return nil
	}

	// Graceful shutdown with deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return gw.Stop(shutdownCtx)
}
