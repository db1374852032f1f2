package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/db"
	"github.com/albapepper/scoracle-pbp/internal/pbp"
	"github.com/albapepper/scoracle-pbp/internal/report"
	"github.com/albapepper/scoracle-pbp/internal/table"
)

type repairFlags struct {
	pbpPath     string
	gamesPath   string
	output      string
	reconOutput string
	reportPath  string
	auditOnly   bool
	tolerance   int
	threshold   float64
	workers     int
	fromDB      bool
	season      int
	persist     bool
}

func repairCmd() *cobra.Command {
	var f repairFlags
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair play-by-play scores and run the QA gates",
		Long: `Rebuilds the running score from scoring flags and point values,
reconciles each game against official finals and reports whether the
dataset may feed the possession and event-rate simulators.

A blocked gate is a normal outcome and exits 0; an unrecognized input
schema exits nonzero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithConfig(func(ctx context.Context, cfg *config.Config) error {
				opts := pbp.Options{
					Tolerance:      cfg.Tolerance,
					MatchThreshold: cfg.MatchThreshold,
					Workers:        cfg.Workers,
				}
				if cmd.Flags().Changed("tolerance") {
					opts.Tolerance = f.tolerance
				}
				if cmd.Flags().Changed("threshold") {
					opts.MatchThreshold = f.threshold
				}
				if cmd.Flags().Changed("workers") {
					opts.Workers = f.workers
				}
				err := runRepair(ctx, cfg, f, opts)
				var schemaErr *pbp.SchemaError
				if errors.As(err, &schemaErr) {
					logger.Error("Input schema not recognized",
						"table", schemaErr.Table, "missing", schemaErr.Missing)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&f.pbpPath, "pbp", "", "Play-by-play CSV")
	cmd.Flags().StringVar(&f.gamesPath, "games", "", "Games CSV with official finals")
	cmd.Flags().StringVar(&f.output, "output", "", "Write the repaired play-by-play CSV here")
	cmd.Flags().StringVar(&f.reconOutput, "reconciliation-output", "", "Write the per-game reconciliation CSV here")
	cmd.Flags().StringVar(&f.reportPath, "save-report", "", "Write the JSON QA report here")
	cmd.Flags().BoolVar(&f.auditOnly, "audit-only", false, "Only audit the vendor scores, no repair")
	cmd.Flags().IntVar(&f.tolerance, "tolerance", pbp.DefaultTolerance, "Max points off the official final per side (default from PBP_TOLERANCE)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", pbp.DefaultMatchThreshold, "Min final-score match rate (default from PBP_MATCH_THRESHOLD)")
	cmd.Flags().IntVar(&f.workers, "workers", 1, "Games processed concurrently (default from PBP_WORKERS)")
	cmd.Flags().BoolVar(&f.fromDB, "from-db", false, "Load play_by_play and games from Postgres instead of CSV")
	cmd.Flags().IntVar(&f.season, "season", 0, "Season to load with --from-db")
	cmd.Flags().BoolVar(&f.persist, "persist", false, "Store the QA report and reconciliation in Postgres")
	return cmd
}

func runRepair(ctx context.Context, cfg *config.Config, f repairFlags, opts pbp.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	var pool *db.Pool
	if f.fromDB || f.persist {
		p, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		pool = p
	}

	events, games, source, err := loadInputs(ctx, pool, f)
	if err != nil {
		return err
	}

	if f.auditOnly {
		return runAuditOnly(events, f.reportPath)
	}

	start := time.Now()
	res, err := pbp.Run(events, games, opts, logger)
	if err != nil {
		return err
	}

	if f.output != "" {
		if err := table.WriteFile(f.output, table.Repaired(res.Events, res.ExtraColumns)); err != nil {
			return err
		}
		logger.Info("Repaired play-by-play written", "path", f.output, "rows", len(res.Events))
	}
	if f.reconOutput != "" {
		if err := table.WriteFile(f.reconOutput, table.Reconciliation(res.Reconciliation.Rows)); err != nil {
			return err
		}
		logger.Info("Reconciliation written", "path", f.reconOutput, "games", len(res.Reconciliation.Rows))
	}

	rep := report.New(source, opts, res)
	if f.reportPath != "" {
		if err := rep.WriteFile(f.reportPath); err != nil {
			return err
		}
		logger.Info("QA report written", "path", f.reportPath, "run_id", rep.RunID)
	}
	if f.persist {
		if err := pool.EnsureRunTables(ctx); err != nil {
			return err
		}
		if err := pool.SaveRun(ctx, rep, res.Reconciliation.Rows); err != nil {
			return err
		}
		logger.Info("Run persisted", "run_id", rep.RunID, "games", len(res.Reconciliation.Rows))
	}

	logger.Info("Repair finished",
		"duration", time.Since(start).Round(time.Millisecond),
		"patch", res.Patch.Summary(),
		"engines_enabled", res.Gates.EnginesEnabled)
	return nil
}

// loadInputs materializes both tables from Postgres or CSV. The games table
// is optional in audit-only mode.
func loadInputs(ctx context.Context, pool *db.Pool, f repairFlags) (events, games pbp.RawTable, source string, err error) {
	if f.fromDB {
		if f.season == 0 {
			return events, games, "", fmt.Errorf("--season is required with --from-db")
		}
		if events, err = pool.LoadEvents(ctx, f.season); err != nil {
			return events, games, "", err
		}
		if games, err = pool.LoadGames(ctx, f.season); err != nil {
			return events, games, "", err
		}
		logger.Info("Loaded inputs from database", "season", f.season,
			"rows", len(events.Rows), "games", len(games.Rows))
		return events, games, fmt.Sprintf("db:season=%d", f.season), nil
	}

	if f.pbpPath == "" {
		return events, games, "", fmt.Errorf("--pbp is required (or use --from-db)")
	}
	if events, err = table.ReadFile(f.pbpPath); err != nil {
		return events, games, "", err
	}
	if f.gamesPath == "" {
		if f.auditOnly {
			return events, games, f.pbpPath, nil
		}
		return events, games, "", fmt.Errorf("--games is required unless --audit-only")
	}
	if games, err = table.ReadFile(f.gamesPath); err != nil {
		return events, games, "", err
	}
	logger.Info("Loaded inputs", "pbp", f.pbpPath, "rows", len(events.Rows),
		"games", f.gamesPath, "reference_games", len(games.Rows))
	return events, games, f.pbpPath, nil
}

// runAuditOnly audits the vendor score columns without repairing.
func runAuditOnly(events pbp.RawTable, reportPath string) error {
	eventLog, err := pbp.ParseEvents(events)
	if err != nil {
		return err
	}
	if !eventLog.HasVendorScores {
		logger.Warn("No vendor score columns (home_score/away_score); nothing to audit")
		return nil
	}

	audit := pbp.AuditRaw(eventLog.Events)
	logger.Info("Vendor score audit",
		"rows", audit.TotalRows, "games", audit.TotalGames,
		"negative_jump_rows", audit.NegativeJumpRows, "negative_jump_games", audit.NegativeJumpGames,
		"phantom_scoring_rows", audit.PhantomScoringRows, "phantom_scoring_games", audit.PhantomScoringGames,
		"silent_scoring_rows", audit.SilentScoringRows, "silent_scoring_games", audit.SilentScoringGames)

	if reportPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return fmt.Errorf("encode audit: %w", err)
	}
	if err := os.WriteFile(reportPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write audit %s: %w", reportPath, err)
	}
	logger.Info("Audit written", "path", reportPath)
	return nil
}
