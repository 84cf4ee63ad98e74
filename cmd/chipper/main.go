// Chip extraction service entry point
package main

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

	"github.com/rkm/stac-chipper/internal/api"
	"github.com/rkm/stac-chipper/internal/catalog"
	"github.com/rkm/stac-chipper/internal/config"
	"github.com/rkm/stac-chipper/internal/input"
	"github.com/rkm/stac-chipper/internal/pipeline"
	"github.com/rkm/stac-chipper/internal/raster"
	"github.com/rkm/stac-chipper/internal/sink"
)

// logLevelFlag overrides the LOG_LEVEL environment setting when non-empty.
var logLevelFlag string

func main() {
	root := &cobra.Command{
		Use:           "chipper",
		Short:         "Extract per-feature imagery chips from a STAC catalog",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error (overrides LOG_LEVEL)")
	root.AddCommand(newRunCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <features.geojson>",
		Short: "Extract chips for every feature in a GeoJSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(args[0])
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve chip extraction over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

// buildPipeline wires the catalog client, raster opener and optional sink
// from configuration. The returned client still needs Connect.
func buildPipeline(cfg *config.Config, logger *slog.Logger, withSink bool) (*pipeline.Pipeline, *catalog.Client, error) {
	resampling, err := raster.ParseResampling(cfg.Raster.Resampling)
	if err != nil {
		return nil, nil, err
	}

	client := catalog.NewClient(cfg.Catalog.URL, cfg.Catalog.Timeout).WithLogger(logger)
	opener := raster.NewOpener(raster.NewSchemeFetcher(cfg.Raster.Timeout)).WithLogger(logger)

	var crops pipeline.Sink
	if withSink {
		crops = sink.NewPNGSink(cfg.Output.Dir).WithLogger(logger)
	}

	pipe := pipeline.New(pipeline.Options{
		Collection:   cfg.Catalog.Collection,
		AssetKey:     cfg.Catalog.AssetKey,
		BufferMeters: cfg.Geo.BufferMeters,
		SearchLimit:  cfg.Catalog.SearchLimit,
		Resampling:   resampling,
		Boundless:    cfg.Raster.Boundless,
		Searcher:     client,
		Opener:       opener,
		Sink:         crops,
		Logger:       logger,
	})
	return pipe, client, nil
}

func runBatch(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	features, err := input.LoadFile(path)
	if err != nil {
		return err
	}
	logger.Info("loaded features", "count", len(features), "path", path)

	pipe, client, err := buildPipeline(cfg, logger, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// An unreachable catalog fails the whole run up front. Per-feature
	// faults later on only fail their own feature.
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to catalog: %w", err)
	}
	logger.Info("connected to catalog", "url", cfg.Catalog.URL, "collection", cfg.Catalog.Collection)

	runner := pipeline.NewRunner(pipe, cfg.Runner.Workers, cfg.Runner.FeatureTimeout).WithLogger(logger)
	_, summary := runner.Run(ctx, features)

	logger.Info("run complete",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"rejected", summary.Rejected,
		"no_coverage", summary.NoCoverage,
		"failed", summary.Failed,
	)

	fmt.Printf("processed %d features: %d succeeded, %d rejected, %d without coverage, %d failed\n",
		summary.Processed, summary.Succeeded, summary.Rejected, summary.NoCoverage, summary.Failed)
	return nil
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)

	logger.Info("starting chip service",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"collection", cfg.Catalog.Collection,
	)

	pipe, client, err := buildPipeline(cfg, logger, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to catalog: %w", err)
	}

	handlers := api.NewHandlers(pipe, logger)
	router := api.NewRouter(handlers, logger)

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupLogger(level, format string) *slog.Logger {
	if logLevelFlag != "" {
		level = logLevelFlag
	}

	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
