// Package pbp repairs and certifies BallDontLie play-by-play score streams.
//
// The pipeline runs in five stages, each returning a fresh value:
//
//	raw tables -> NormalizeGames / ParseEvents   (schema boundary)
//	           -> Patch                          (flag + point-value fixes)
//	           -> Rebuild                        (monotonic cumulative score)
//	           -> Reconcile                      (vs official box-score finals)
//	           -> Audit + Evaluate               (QA gates)
//
// The vendor's running score is only ever read by the raw Auditor. Every
// score the engine emits is rebuilt from scoring_play + score_value.
package pbp

// --------------------------------------------------------------------------
// Input tables
// --------------------------------------------------------------------------

// RawTable is a materialized tabular input: a header row and string cells.
// CSV files, Postgres result sets and HTTP payloads are all decoded into
// this shape before crossing the schema boundary.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Index returns column name -> position. Later duplicates win.
func (t RawTable) Index() map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		idx[c] = i
	}
	return idx
}

// Cell returns the value at row r, column position col, or "" if the row is
// short or the column is absent (col < 0).
func (t RawTable) Cell(r, col int) string {
	if col < 0 || col >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][col]
}

// --------------------------------------------------------------------------
// Stage records
// --------------------------------------------------------------------------

// Event is one play-by-play row as ingested.
type Event struct {
	Seq         int    // original row position, the stable secondary sort key
	GameID      string // canonical integer string when numeric
	Order       *int   // intra-game sequence number; nil sorts last
	Period      *int
	Clock       string
	Type        string
	Text        string
	TeamAbbr    string
	ScoringPlay bool // missing is read as false
	ScoreValue  *int
	HomeScore   *int // vendor running score, unreliable
	AwayScore   *int
	Extra       []string // passthrough columns, aligned with EventLog.ExtraColumns
}

// EventLog is the typed event table produced by ParseEvents.
type EventLog struct {
	Events []Event
	// ExtraColumns names passthrough columns (shot location, team_id, ...)
	// carried unchanged to the repaired output.
	ExtraColumns []string
	// HasVendorScores reports whether home_score/away_score were present.
	HasVendorScores bool
	// MissingGameID counts rows with a blank game_id. They are carried to
	// the output but belong to no game.
	MissingGameID int
}

// GameRef is the canonical game reference row.
type GameRef struct {
	GameID    string `json:"game_id"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeFinal *int   `json:"home_final"`
	AwayFinal *int   `json:"away_final"`
}

// PatchedEvent is an Event after metadata patching. Only ScoringPlay and
// ScoreValue may differ from the source row.
type PatchedEvent struct {
	Event
}

// Side is the result of resolving an event's team against its game.
type Side int

const (
	SideUnresolved Side = iota
	SideHome
	SideAway
)

func (s Side) String() string {
	switch s {
	case SideHome:
		return "home"
	case SideAway:
		return "away"
	default:
		return "unresolved"
	}
}

// RepairedEvent carries the rebuilt score columns. The embedded vendor
// HomeScore/AwayScore are kept for diagnostics only (written out as
// home_score_raw/away_score_raw).
type RepairedEvent struct {
	PatchedEvent
	Side          Side
	HomePointsRow int
	AwayPointsRow int
	HomeScoreFix  int
	AwayScoreFix  int
	MarginFix     int
	PBPReliable   bool
}

// ReconciliationRow is the per-game comparison against official finals.
type ReconciliationRow struct {
	GameID       string `json:"game_id"`
	PBPHomeFinal int    `json:"pbp_home_final"`
	PBPAwayFinal int    `json:"pbp_away_final"`
	// HasBoxScore is false when the game is missing from the reference
	// table or its finals are blank; such games are never reliable.
	HasBoxScore  bool `json:"has_box_score"`
	BoxHomeFinal int  `json:"box_home_final"`
	BoxAwayFinal int  `json:"box_away_final"`
	HomeDiff     int  `json:"home_diff"`
	AwayDiff     int  `json:"away_diff"`
	PBPReliable  bool `json:"pbp_reliable"`
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	DefaultTolerance      = 1
	DefaultMatchThreshold = 0.995
)

// Options are the explicit per-run parameters. The engine never reads
// configuration on its own.
type Options struct {
	// Tolerance is the max absolute point difference per side for a game
	// to reconcile.
	Tolerance int
	// MatchThreshold is the inclusive minimum final_score_match_rate.
	MatchThreshold float64
	// Workers > 1 fans the per-game Rebuild and Reconcile steps out across
	// goroutines. Output is identical either way.
	Workers int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance:      DefaultTolerance,
		MatchThreshold: DefaultMatchThreshold,
		Workers:        1,
	}
}
