package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/variomes/internal/api"
	"github.com/Aman-CERP/variomes/internal/logging"
	"github.com/Aman-CERP/variomes/internal/mcp"
	"github.com/Aman-CERP/variomes/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		addr     string
		httpMode bool
		mcpMode  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the MCP tools",
		Long: `Serve the ranking pipeline.

  --http   HTTP API (rankLit, rankVar, fetchDoc, status) with /metrics
  --mcp    MCP tools over stdio

With no mode flag the HTTP API is served. With --mcp nothing but MCP
messages is written to stdout; logs go to the log file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if !httpMode && !mcpMode {
				httpMode = true
			}
			return runServe(ctx, addr, httpMode, mcpMode)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from api.addr)")
	cmd.Flags().BoolVar(&httpMode, "http", false, "Serve the HTTP API")
	cmd.Flags().BoolVar(&mcpMode, "mcp", false, "Serve MCP tools over stdio")

	return cmd
}

func runServe(ctx context.Context, addr string, httpMode, mcpMode bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.API.Addr
	}

	metrics := telemetry.FromConfig(cfg)
	defer func() {
		if err := metrics.Close(); err != nil {
			slog.Warn("telemetry_close_failed", slog.String("error", err.Error()))
		}
	}()

	rt, err := newRuntime(cfg, runtimeOptions{
		Metrics: metrics,
		Owner:   processOwner("serve"),
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	slog.Info("serve_starting",
		slog.Bool("http", httpMode),
		slog.Bool("mcp", mcpMode),
		slog.String("backend", rt.backendName()))

	g, gctx := errgroup.WithContext(ctx)
	if httpMode {
		server := api.New(api.Options{
			Config:  cfg,
			Service: rt.service,
			Metrics: metrics,
			Queries: logging.NewQueryLog(cfg.Paths.LogsDir()),
			Debug:   debugMode,
		})
		g.Go(func() error {
			if err := server.Run(gctx, addr); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	if mcpMode {
		server, err := mcp.NewServer(rt.service, cfg)
		if err != nil {
			return err
		}
		server.SetMetrics(metrics)
		defer func() { _ = server.Close() }()
		g.Go(func() error {
			err := server.Serve(gctx, "stdio")
			if err != nil && gctx.Err() == nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
