package pbp

import (
	"fmt"
	"log/slog"
)

// GateResult is the flat QA record consumed by the possession and
// event-rate simulators. EnginesEnabled is the single go/no-go signal.
type GateResult struct {
	NegJumpFix               int     `json:"neg_jump_fix"`
	ScoreChangeNonScoringFix int     `json:"score_change_non_scoring_fix"`
	ScoringNoChangeFix       int     `json:"scoring_no_change_fix"`
	FinalScoreMatchRate      float64 `json:"final_score_match_rate"`
	FinalScoreMatchThreshold float64 `json:"final_score_match_threshold"`
	PossessionPointsNonneg   float64 `json:"possession_points_nonneg"`
	ReliableGames            int     `json:"reliable_games"`
	TotalGames               int     `json:"total_games"`
	UnreliableGames          int     `json:"unreliable_games"`
	// UnresolvedScoringRows is diagnostic; it does not feed any gate.
	UnresolvedScoringRows int `json:"unresolved_scoring_rows"`
	// MissingGameIDRows counts rows outside every game; diagnostic only.
	MissingGameIDRows int  `json:"missing_game_id_rows"`
	EnginesEnabled    bool `json:"engines_enabled"`
}

// GateInput bundles the outputs the gate evaluator reads.
type GateInput struct {
	PostAudit      AuditResult
	Reconciliation Reconciliation
	// Repaired rows are re-checked for non-negative per-row points.
	Repaired              []RepairedEvent
	UnresolvedScoringRows int
	MissingGameIDRows     int
}

// Evaluate computes the four QA gates. The match-rate comparison is
// inclusive. Pure and deterministic.
func Evaluate(in GateInput, threshold float64) GateResult {
	nonneg := 1.0
	for _, ev := range in.Repaired {
		if ev.HomePointsRow < 0 || ev.AwayPointsRow < 0 {
			nonneg = 0.0
			break
		}
	}

	rec := in.Reconciliation
	g := GateResult{
		NegJumpFix:               in.PostAudit.NegativeJumpRows,
		ScoreChangeNonScoringFix: in.PostAudit.PhantomScoringRows,
		ScoringNoChangeFix:       in.PostAudit.SilentScoringRows,
		FinalScoreMatchRate:      rec.MatchRate,
		FinalScoreMatchThreshold: threshold,
		PossessionPointsNonneg:   nonneg,
		ReliableGames:            rec.ReliableGames,
		TotalGames:               rec.TotalGames,
		UnreliableGames:          rec.TotalGames - rec.ReliableGames,
		UnresolvedScoringRows:    in.UnresolvedScoringRows,
		MissingGameIDRows:        in.MissingGameIDRows,
	}
	g.EnginesEnabled = len(g.BlockReasons()) == 0
	return g
}

// BlockReasons lists every failed gate; empty when all gates pass.
func (g GateResult) BlockReasons() []string {
	var reasons []string
	if g.NegJumpFix != 0 {
		reasons = append(reasons, fmt.Sprintf("neg_jump_fix=%d", g.NegJumpFix))
	}
	if g.ScoreChangeNonScoringFix != 0 {
		reasons = append(reasons, fmt.Sprintf("score_change_non_scoring_fix=%d", g.ScoreChangeNonScoringFix))
	}
	if g.FinalScoreMatchRate < g.FinalScoreMatchThreshold {
		reasons = append(reasons, fmt.Sprintf("final_score_match_rate=%.4f < %.4f", g.FinalScoreMatchRate, g.FinalScoreMatchThreshold))
	}
	if g.PossessionPointsNonneg != 1.0 {
		reasons = append(reasons, "negative possession points detected")
	}
	return reasons
}

// Log writes the gate values and, when blocked, the reasons.
func (g GateResult) Log(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("QA gates",
		"neg_jump_fix", g.NegJumpFix,
		"score_change_non_scoring_fix", g.ScoreChangeNonScoringFix,
		"final_score_match_rate", g.FinalScoreMatchRate,
		"threshold", g.FinalScoreMatchThreshold,
		"possession_points_nonneg", g.PossessionPointsNonneg,
		"reliable_games", g.ReliableGames,
		"total_games", g.TotalGames,
		"unresolved_scoring_rows", g.UnresolvedScoringRows)
	if g.EnginesEnabled {
		logger.Info("Simulation engines ENABLED")
		return
	}
	logger.Warn("Simulation engines BLOCKED", "reasons", g.BlockReasons())
}
