package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/provider/bdl"
	"github.com/albapepper/scoracle-pbp/internal/table"
)

func fetchCmd() *cobra.Command {
	var (
		startDate string
		endDate   string
		season    int
		outDir    string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download NBA games and play-by-play from BallDontLie as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if startDate == "" {
				return fmt.Errorf("--start-date is required")
			}
			if endDate == "" {
				endDate = startDate
			}
			for _, d := range []string{startDate, endDate} {
				if _, err := time.Parse(time.DateOnly, d); err != nil {
					return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
				}
			}
			return runWithConfig(func(ctx context.Context, cfg *config.Config) error {
				if cfg.BDLAPIKey == "" {
					return fmt.Errorf("BALLDONTLIE_API_KEY is required")
				}
				handler := bdl.NewNBAHandler(cfg.BDLBaseURL, cfg.BDLAPIKey, logger)
				start := time.Now()
				games, plays, result, err := handler.Fetch(ctx, startDate, endDate, season)
				if err != nil {
					return err
				}
				for _, e := range result.Errors {
					logger.Error("fetch error", "error", e)
				}

				suffix := fmt.Sprintf("%s_%s.csv", startDate, endDate)
				gamesPath := filepath.Join(outDir, "games_"+suffix)
				playsPath := filepath.Join(outDir, "play_by_play_"+suffix)
				if err := table.WriteFile(gamesPath, games); err != nil {
					return err
				}
				if err := table.WriteFile(playsPath, plays); err != nil {
					return err
				}
				logger.Info("Fetch finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary(),
					"games", gamesPath, "pbp", playsPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "First game date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Last game date (YYYY-MM-DD, defaults to start date)")
	cmd.Flags().IntVar(&season, "season", 0, "Restrict to a season (0 = any)")
	cmd.Flags().StringVar(&outDir, "out-dir", "data", "Output directory")
	return cmd
}
