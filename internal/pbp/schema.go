package pbp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SchemaError is the only fatal error in the pipeline: a required column is
// absent from an input table. No partial output is produced.
type SchemaError struct {
	Table   string
	Missing []string
	Detail  string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("%s table: missing required columns %s", e.Table, strings.Join(e.Missing, ", "))
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// --------------------------------------------------------------------------
// Game reference conventions
// --------------------------------------------------------------------------

// GameConvention names the columns of one supported games-table layout.
type GameConvention struct {
	Name      string
	HomeTeam  string
	AwayTeam  string
	HomeScore string
	AwayScore string
}

// GameConventions lists the accepted layouts in lookup order: the BDL v1
// flattening first, then the v2 one.
var GameConventions = []GameConvention{
	{Name: "v1", HomeTeam: "home_team_abbr", AwayTeam: "visitor_team_abbr", HomeScore: "home_score", AwayScore: "visitor_score"},
	{Name: "v2", HomeTeam: "home_team_abbrev", AwayTeam: "away_team_abbrev", HomeScore: "home_team_score", AwayScore: "away_team_score"},
}

// GameTable is the canonical game reference produced by NormalizeGames.
type GameTable struct {
	Convention string
	Games      []GameRef
	// Skipped counts rows with a blank game_id.
	Skipped int
}

// Lookup indexes the table by game_id. Duplicate ids: the last row wins.
func (g GameTable) Lookup() map[string]GameRef {
	m := make(map[string]GameRef, len(g.Games))
	for _, ref := range g.Games {
		m[ref.GameID] = ref
	}
	return m
}

// NormalizeGames maps either supported column convention onto GameRef.
func NormalizeGames(t RawTable) (GameTable, error) {
	idx := t.Index()
	if _, ok := idx["game_id"]; !ok {
		return GameTable{}, &SchemaError{Table: "games", Missing: []string{"game_id"}}
	}

	var conv *GameConvention
	var firstMissing []string
	for i := range GameConventions {
		c := &GameConventions[i]
		missing := missingColumns(idx, c.HomeTeam, c.AwayTeam, c.HomeScore, c.AwayScore)
		if len(missing) == 0 {
			conv = c
			break
		}
		if firstMissing == nil {
			firstMissing = missing
		}
	}
	if conv == nil {
		return GameTable{}, &SchemaError{
			Table:   "games",
			Missing: firstMissing,
			Detail:  "expected home_team_abbr/visitor_team_abbr/home_score/visitor_score or home_team_abbrev/away_team_abbrev/home_team_score/away_team_score",
		}
	}

	gameCol := idx["game_id"]
	homeCol, awayCol := idx[conv.HomeTeam], idx[conv.AwayTeam]
	homeScoreCol, awayScoreCol := idx[conv.HomeScore], idx[conv.AwayScore]

	out := GameTable{Convention: conv.Name, Games: make([]GameRef, 0, len(t.Rows))}
	for r := range t.Rows {
		id := canonicalID(t.Cell(r, gameCol))
		if id == "" {
			out.Skipped++
			continue
		}
		out.Games = append(out.Games, GameRef{
			GameID:    id,
			HomeTeam:  strings.TrimSpace(t.Cell(r, homeCol)),
			AwayTeam:  strings.TrimSpace(t.Cell(r, awayCol)),
			HomeFinal: parseOptInt(t.Cell(r, homeScoreCol)),
			AwayFinal: parseOptInt(t.Cell(r, awayScoreCol)),
		})
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Event table
// --------------------------------------------------------------------------

// RequiredEventColumns must all be present in an event table.
var RequiredEventColumns = []string{"game_id", "order", "type", "text", "team_abbr"}

// Columns the parser maps onto Event fields. Everything else is passthrough.
var knownEventColumns = map[string]bool{
	"game_id": true, "order": true, "period": true, "clock": true,
	"type": true, "text": true, "team_abbr": true,
	"scoring_play": true, "score_value": true,
	"home_score": true, "away_score": true,
	"home_score_raw": true, "away_score_raw": true,
}

// Columns the repaired output adds; dropped from passthrough so that a
// repaired table can be fed back through the pipeline.
var derivedEventColumns = map[string]bool{
	"home_points_row": true, "away_points_row": true,
	"home_score_fix": true, "away_score_fix": true,
	"margin_fix": true, "pbp_reliable": true,
}

// ParseEvents validates the event table and decodes it into typed rows.
// scoring_play and score_value may be absent (read as false / missing).
// Vendor scores are read from home_score/away_score, or from
// home_score_raw/away_score_raw on an already-repaired table.
func ParseEvents(t RawTable) (EventLog, error) {
	idx := t.Index()
	if missing := missingColumns(idx, RequiredEventColumns...); len(missing) > 0 {
		return EventLog{}, &SchemaError{Table: "events", Missing: missing}
	}

	col := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}
	homeCol, awayCol := col("home_score"), col("away_score")
	if homeCol < 0 || awayCol < 0 {
		homeCol, awayCol = col("home_score_raw"), col("away_score_raw")
	}

	var extras []string
	var extraCols []int
	for i, c := range t.Columns {
		if knownEventColumns[c] || derivedEventColumns[c] || idx[c] != i {
			continue
		}
		extras = append(extras, c)
		extraCols = append(extraCols, i)
	}

	var (
		gameCol, orderCol, periodCol, clockCol = col("game_id"), col("order"), col("period"), col("clock")
		typeCol, textCol, teamCol              = col("type"), col("text"), col("team_abbr")
		scoringCol, valueCol                   = col("scoring_play"), col("score_value")
	)

	out := EventLog{
		Events:          make([]Event, len(t.Rows)),
		ExtraColumns:    extras,
		HasVendorScores: homeCol >= 0 && awayCol >= 0,
	}
	for r := range t.Rows {
		ev := Event{
			Seq:         r,
			GameID:      canonicalID(t.Cell(r, gameCol)),
			Order:       parseOptInt(t.Cell(r, orderCol)),
			Period:      parseOptInt(t.Cell(r, periodCol)),
			Clock:       t.Cell(r, clockCol),
			Type:        t.Cell(r, typeCol),
			Text:        t.Cell(r, textCol),
			TeamAbbr:    strings.TrimSpace(t.Cell(r, teamCol)),
			ScoringPlay: parseBool(t.Cell(r, scoringCol)),
			ScoreValue:  parseOptInt(t.Cell(r, valueCol)),
			HomeScore:   parseOptInt(t.Cell(r, homeCol)),
			AwayScore:   parseOptInt(t.Cell(r, awayCol)),
		}
		if ev.GameID == "" {
			out.MissingGameID++
		}
		if len(extraCols) > 0 {
			ev.Extra = make([]string, len(extraCols))
			for i, c := range extraCols {
				ev.Extra[i] = t.Cell(r, c)
			}
		}
		out.Events[r] = ev
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Cell parsing
// --------------------------------------------------------------------------

func missingColumns(idx map[string]int, names ...string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := idx[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// parseOptInt reads an integer cell. Float renderings of whole numbers
// ("12.0", common in exports of nullable integer columns) are accepted;
// blanks, NaN, non-numeric text and values outside the int range are
// missing.
func parseOptInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	// float64(math.MaxInt) rounds up to 2^63, which is itself out of range.
	if f < math.MinInt || f >= math.MaxInt {
		return nil
	}
	n := int(f)
	return &n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "1.0", "yes", "y":
		return true
	default:
		return false
	}
}

// canonicalID renders numeric ids without a fractional part so "18447" and
// "18447.0" refer to the same game.
func canonicalID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if n := parseOptInt(s); n != nil {
		return strconv.Itoa(*n)
	}
	return s
}
