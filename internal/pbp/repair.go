package pbp

import (
	"fmt"
	"log/slog"
)

// Result is everything one pipeline run produces.
type Result struct {
	// Events are the repaired rows in input order with pbp_reliable set.
	Events       []RepairedEvent
	ExtraColumns []string
	Patch        PatchStats
	// PreAudit is nil when the event table carried no vendor score columns.
	PreAudit       *AuditResult
	PostAudit      AuditResult
	Reconciliation Reconciliation
	Gates          GateResult
}

// Validate rejects option values no run could honor.
func (o Options) Validate() error {
	if o.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %d", o.Tolerance)
	}
	if o.MatchThreshold < 0 || o.MatchThreshold > 1 {
		return fmt.Errorf("match threshold must be within [0, 1], got %g", o.MatchThreshold)
	}
	return nil
}

// Run decodes both raw tables across the schema boundary and repairs the
// event log. The returned error is a *SchemaError for a missing required
// column, or an options validation error; nothing else is fatal.
func Run(events, games RawTable, opts Options, logger *slog.Logger) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	gameTable, err := NormalizeGames(games)
	if err != nil {
		return nil, err
	}
	eventLog, err := ParseEvents(events)
	if err != nil {
		return nil, err
	}
	return Repair(eventLog, gameTable, opts, logger)
}

// Repair runs Patch -> Rebuild -> Reconcile -> Audit -> Evaluate over
// already-decoded tables. Inputs are never modified.
func Repair(eventLog EventLog, games GameTable, opts Options, logger *slog.Logger) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	lookup := games.Lookup()
	res := &Result{ExtraColumns: eventLog.ExtraColumns}

	logger.Info("PBP repair starting",
		"rows", len(eventLog.Events), "reference_games", len(games.Games),
		"convention", games.Convention, "workers", opts.Workers)
	if games.Skipped > 0 {
		logger.Warn("Reference rows without game_id skipped", "count", games.Skipped)
	}
	if eventLog.MissingGameID > 0 {
		logger.Warn("Event rows without game_id belong to no game", "count", eventLog.MissingGameID)
	}

	if eventLog.HasVendorScores {
		pre := AuditRaw(eventLog.Events)
		res.PreAudit = &pre
		logger.Info("Pre-repair audit",
			"negative_jump_rows", pre.NegativeJumpRows, "negative_jump_games", pre.NegativeJumpGames,
			"phantom_scoring_rows", pre.PhantomScoringRows, "phantom_scoring_games", pre.PhantomScoringGames,
			"silent_scoring_rows", pre.SilentScoringRows, "silent_scoring_games", pre.SilentScoringGames)
	}

	patched, stats := Patch(eventLog.Events)
	res.Patch = stats
	logger.Info("Metadata patched", "summary", stats.Summary())

	rebuilt := Rebuild(patched, lookup, opts)
	if rebuilt.UnresolvedScoringRows > 0 {
		logger.Warn("Scoring rows with unresolved team contribute no points",
			"rows", rebuilt.UnresolvedScoringRows)
	}

	res.Reconciliation = Reconcile(rebuilt.Events, lookup, opts, logger)
	res.Events = res.Reconciliation.Apply(rebuilt.Events)

	res.PostAudit = AuditRepaired(res.Events)
	res.Gates = Evaluate(GateInput{
		PostAudit:             res.PostAudit,
		Reconciliation:        res.Reconciliation,
		Repaired:              res.Events,
		UnresolvedScoringRows: rebuilt.UnresolvedScoringRows,
		MissingGameIDRows:     eventLog.MissingGameID,
	}, opts.MatchThreshold)
	res.Gates.Log(logger)

	return res, nil
}
