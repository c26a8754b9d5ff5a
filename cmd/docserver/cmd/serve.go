package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docserver/docserver/internal/gc"
	"github.com/docserver/docserver/internal/preflight"
	"github.com/docserver/docserver/internal/profiling"
	"github.com/docserver/docserver/internal/rest"
)

func newServeCmd() *cobra.Command {
	var cpuProfile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and MCP Streamable HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cpuProfile)
		},
	}

	cmd.Flags().StringVar(&cpuProfile, "cpu-profile", "", "write a CPU profile to this path while serving")

	return cmd
}

// runServe wires the REST router under /api/v1 and the MCP transport
// under /mcp behind one net/http listener, starts the background gc
// sweeper, and blocks until SIGINT/SIGTERM.
func runServe(ctx context.Context, cpuProfile string) error {
	if cpuProfile != "" {
		stop, err := profiling.NewProfiler().StartCPU(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer stop()
	}

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	if preflight.NeedsCheck(d.cfg.Store.Path) {
		checker := preflight.New()
		results := checker.RunAll(ctx, d.cfg.Store.Path)
		if checker.HasCriticalFailures(results) {
			return fmt.Errorf("preflight checks failed, run 'docserver doctor' for details")
		}
		if err := preflight.MarkPassed(d.cfg.Store.Path); err != nil {
			slog.Warn("failed to write preflight marker", slog.String("error", err.Error()))
		}
	} else {
		slog.Info("skipping preflight checks, marker still fresh", slog.Duration("age", preflight.MarkerAge(d.cfg.Store.Path)))
	}

	restServer := rest.New(rest.Config{Store: d.store, Pipeline: d.pipeline})

	sweeper := gc.New(gc.Config{Store: d.store, Sessions: d.mcp.Sessions()})
	if err := sweeper.Start(""); err != nil {
		return fmt.Errorf("failed to start background sweeper: %w", err)
	}
	defer sweeper.Stop()

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", restServer.Router())
	mux.Handle("/mcp", d.mcp.Handler())

	addr := fmt.Sprintf(":%d", d.cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docserver listening", slog.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-serveCtx.Done():
		slog.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	}
}
