package db

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/pbp"
	"github.com/albapepper/scoracle-pbp/internal/report"
)

//go:embed schema.sql
var runTablesDDL string

// --------------------------------------------------------------------------
// Input loaders
// --------------------------------------------------------------------------

// LoadEvents reads one season of play-by-play into a raw table.
func (p *Pool) LoadEvents(ctx context.Context, season int) (pbp.RawTable, error) {
	rows, err := p.Query(ctx, "load_play_by_play", season)
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("query %s: %w", config.PlayByPlayTable, err)
	}
	t, err := collectTable(rows)
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("read %s: %w", config.PlayByPlayTable, err)
	}
	return t, nil
}

// LoadGames reads one season of game references into a raw table.
func (p *Pool) LoadGames(ctx context.Context, season int) (pbp.RawTable, error) {
	rows, err := p.Query(ctx, "load_games", season)
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("query %s: %w", config.GamesTable, err)
	}
	t, err := collectTable(rows)
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("read %s: %w", config.GamesTable, err)
	}
	return t, nil
}

func collectTable(rows pgx.Rows) (pbp.RawTable, error) {
	defer rows.Close()

	fds := rows.FieldDescriptions()
	t := pbp.RawTable{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		t.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return pbp.RawTable{}, err
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = cellString(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

// cellString renders a decoded Postgres value the way the CSV loader would
// see it. NULL becomes the empty cell.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return strconv.FormatFloat(f.Float64, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(x).String()
	default:
		return fmt.Sprint(x)
	}
}

// --------------------------------------------------------------------------
// Run sink
// --------------------------------------------------------------------------

var reconciliationColumns = []string{
	"run_id", "game_id", "pbp_home_final", "pbp_away_final",
	"box_home_final", "box_away_final", "home_diff", "away_diff", "pbp_reliable",
}

// EnsureRunTables creates the report and reconciliation tables if missing.
func (p *Pool) EnsureRunTables(ctx context.Context) error {
	if _, err := p.Exec(ctx, runTablesDDL); err != nil {
		return fmt.Errorf("create run tables: %w", err)
	}
	return nil
}

// SaveRun stores the QA report and the per-game reconciliation of one run
// in a single transaction. Reconciliation rows are bulk-loaded with COPY.
func (p *Pool) SaveRun(ctx context.Context, rep report.Report, rows []pbp.ReconciliationRow) error {
	doc, err := rep.Marshal()
	if err != nil {
		return err
	}
	id, err := uuid.Parse(rep.RunID)
	if err != nil {
		return fmt.Errorf("run id %q: %w", rep.RunID, err)
	}
	runID := pgtype.UUID{Bytes: id, Valid: true}

	tx, err := p.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "insert_qa_report",
		runID, rep.GeneratedAt, rep.Source,
		rep.Gates.EnginesEnabled, rep.Gates.FinalScoreMatchRate, doc,
	); err != nil {
		return fmt.Errorf("insert %s: %w", config.QAReportsTable, err)
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{config.ReconciliationTable},
		reconciliationColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return reconciliationValues(runID, rows[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy %s: %w", config.ReconciliationTable, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("copy %s: wrote %d of %d rows", config.ReconciliationTable, n, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// reconciliationValues orders one row for COPY. Box-score fields are NULL
// for games without an official final.
func reconciliationValues(runID pgtype.UUID, r pbp.ReconciliationRow) []any {
	var boxHome, boxAway, homeDiff, awayDiff any
	if r.HasBoxScore {
		boxHome, boxAway = int32(r.BoxHomeFinal), int32(r.BoxAwayFinal)
		homeDiff, awayDiff = int32(r.HomeDiff), int32(r.AwayDiff)
	}
	return []any{
		runID, r.GameID, int32(r.PBPHomeFinal), int32(r.PBPAwayFinal),
		boxHome, boxAway, homeDiff, awayDiff, r.PBPReliable,
	}
}
