package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/scry/internal/logging"
	"github.com/Aman-CERP/scry/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport, metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run scry as a Model Context Protocol server. stdout carries JSON-RPC
only; logs go to ~/.scry/logs/scry.log.

With --metrics-addr, Prometheus metrics for queries and sources are served
at /metrics on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")

	return cmd
}

func runServe(ctx context.Context, transport, metricsAddr string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg.Level = "debug"
	}
	cleanup, err := logging.SetupServeMode(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(".")
	if err != nil {
		slog.Error("failed to open sources", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("close failed", slog.String("error", err.Error()))
		}
	}()

	var usage mcp.UsageRecorder
	if a.usage != nil {
		usage = a.usage
	}
	srv, err := mcp.NewServer(a.engine, usage)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		if a.collector == nil {
			return errors.New("--metrics-addr needs telemetry enabled")
		}
		shutdown := serveMetrics(metricsAddr, a.collector.Handler())
		defer shutdown()
	}

	for _, info := range a.engine.Sources() {
		slog.Info("source",
			slog.String("name", info.Name),
			slog.Bool("available", info.Available),
			slog.String("granularity", string(info.Granularity)))
	}

	return srv.Serve(ctx, transport)
}

// serveMetrics starts the metrics listener and returns its shutdown func.
func serveMetrics(addr string, handler http.Handler) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics listener started", slog.String("addr", addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics listener failed", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}
