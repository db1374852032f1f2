// Command pbp is the Scoracle play-by-play score repair CLI.
//
// Usage:
//
//	scoracle-pbp repair --pbp data/play_by_play.csv --games data/games.csv --output data/pbp_repaired.csv
//	scoracle-pbp repair --pbp data/play_by_play.csv --audit-only
//	scoracle-pbp repair --from-db --season 2025 --persist --save-report qa.json
//	scoracle-pbp fetch --start-date 2025-10-22 --end-date 2025-10-28 --out-dir data
//	scoracle-pbp serve
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/db"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "scoracle-pbp",
		Short: "Play-by-play score repair and QA gating",
	}

	root.AddCommand(repairCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithConfig handles config loading and context cancellation.
func runWithConfig(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return fn(ctx, cfg)
}

// connect opens the database pool for DB-backed flags.
func connect(ctx context.Context, cfg *config.Config) (*db.Pool, error) {
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)
	return pool, nil
}
