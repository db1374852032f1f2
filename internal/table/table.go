// Package table materializes pipeline inputs and outputs as CSV files.
//
// Inputs decode into pbp.RawTable and cross the schema boundary in the pbp
// package; outputs are rendered from the typed pipeline records.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

// ErrUnsupportedFormat is returned for file extensions other than .csv.
var ErrUnsupportedFormat = errors.New("unsupported table format (only .csv is supported)")

// ReadFile reads a CSV file into a raw table.
func ReadFile(path string) (pbp.RawTable, error) {
	if err := checkExt(path); err != nil {
		return pbp.RawTable{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Read decodes CSV with a header row. Short rows are padded by
// RawTable.Cell; long rows keep their extra cells.
func Read(r io.Reader) (pbp.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return pbp.RawTable{}, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return pbp.RawTable{}, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := pbp.RawTable{Columns: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return pbp.RawTable{}, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// WriteFile writes a raw table as CSV, creating parent directories.
func WriteFile(path string, t pbp.RawTable) error {
	if err := checkExt(path); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Write encodes a raw table as CSV with a header row.
func Write(w io.Writer, t pbp.RawTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

func checkExt(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	return nil
}

// --------------------------------------------------------------------------
// Output rendering
// --------------------------------------------------------------------------

var repairedLeading = []string{
	"game_id", "order", "period", "clock", "type", "text", "team_abbr",
	"scoring_play", "score_value", "home_score_raw", "away_score_raw",
}

var repairedTrailing = []string{
	"home_points_row", "away_points_row",
	"home_score_fix", "away_score_fix", "margin_fix", "pbp_reliable",
}

// Repaired renders repaired events (input order) with passthrough columns
// between the source fields and the rebuilt score columns. Vendor scores
// are written under home_score_raw/away_score_raw.
func Repaired(events []pbp.RepairedEvent, extraColumns []string) pbp.RawTable {
	cols := make([]string, 0, len(repairedLeading)+len(extraColumns)+len(repairedTrailing))
	cols = append(cols, repairedLeading...)
	cols = append(cols, extraColumns...)
	cols = append(cols, repairedTrailing...)

	t := pbp.RawTable{Columns: cols, Rows: make([][]string, len(events))}
	for i, ev := range events {
		row := make([]string, 0, len(cols))
		row = append(row,
			ev.GameID, optInt(ev.Order), optInt(ev.Period), ev.Clock,
			ev.Type, ev.Text, ev.TeamAbbr,
			strconv.FormatBool(ev.ScoringPlay), optInt(ev.ScoreValue),
			optInt(ev.HomeScore), optInt(ev.AwayScore),
		)
		for k := range extraColumns {
			v := ""
			if k < len(ev.Extra) {
				v = ev.Extra[k]
			}
			row = append(row, v)
		}
		row = append(row,
			strconv.Itoa(ev.HomePointsRow), strconv.Itoa(ev.AwayPointsRow),
			strconv.Itoa(ev.HomeScoreFix), strconv.Itoa(ev.AwayScoreFix),
			strconv.Itoa(ev.MarginFix), strconv.FormatBool(ev.PBPReliable),
		)
		t.Rows[i] = row
	}
	return t
}

// Reconciliation renders the per-game reconciliation table. Box-score
// cells are blank for games without an official final.
func Reconciliation(rows []pbp.ReconciliationRow) pbp.RawTable {
	t := pbp.RawTable{
		Columns: []string{
			"game_id", "pbp_home_final", "pbp_away_final",
			"box_home_final", "box_away_final",
			"home_diff", "away_diff", "pbp_reliable",
		},
		Rows: make([][]string, len(rows)),
	}
	for i, r := range rows {
		box := []string{"", "", "", ""}
		if r.HasBoxScore {
			box = []string{
				strconv.Itoa(r.BoxHomeFinal), strconv.Itoa(r.BoxAwayFinal),
				strconv.Itoa(r.HomeDiff), strconv.Itoa(r.AwayDiff),
			}
		}
		t.Rows[i] = []string{
			r.GameID, strconv.Itoa(r.PBPHomeFinal), strconv.Itoa(r.PBPAwayFinal),
			box[0], box[1], box[2], box[3],
			strconv.FormatBool(r.PBPReliable),
		}
	}
	return t
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
