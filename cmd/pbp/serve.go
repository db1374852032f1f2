package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-pbp/internal/api"
	"github.com/albapepper/scoracle-pbp/internal/api/handler"
	"github.com/albapepper/scoracle-pbp/internal/cache"
	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/metrics"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the repair HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(serve)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// The database is optional: without it the API still repairs posted
	// tables but cannot persist runs.
	var store handler.Store
	if cfg.DatabaseURL != "" {
		pool, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.EnsureRunTables(ctx); err != nil {
			return err
		}
		store = pool
	} else {
		logger.Warn("No database configured; persistence disabled")
	}

	appCache := cache.New(cfg.CacheEnabled, cache.DefaultMaxEntries)
	defer appCache.Close()
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	router := api.NewRouter(store, appCache, metrics.New(), cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting Scoracle PBP API",
			"addr", addr,
			"environment", cfg.Environment,
			"tolerance", cfg.Tolerance,
			"match_threshold", cfg.MatchThreshold)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
	return nil
}
