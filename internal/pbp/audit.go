package pbp

// AuditResult counts scoreboard defects in one stream, by row and by
// distinct game.
type AuditResult struct {
	// NegativeJump: either side's score decreased from the previous row.
	NegativeJumpRows  int `json:"negative_jump_rows"`
	NegativeJumpGames int `json:"negative_jump_games"`
	// PhantomScoring: non-scoring row, yet the total score changed.
	PhantomScoringRows  int `json:"phantom_scoring_rows"`
	PhantomScoringGames int `json:"phantom_scoring_games"`
	// SilentScoring: scoring row, yet the total score did not change.
	// Diagnostic only (the second free throw of a 1-of-2 trip, etc).
	SilentScoringRows  int `json:"silent_scoring_rows"`
	SilentScoringGames int `json:"silent_scoring_games"`

	TotalRows  int `json:"total_rows"`
	TotalGames int `json:"total_games"`
}

// scoreRow is the audit view of one row; home/away are nil when the score
// cell is missing.
type scoreRow struct {
	game    string
	key     orderKey
	scoring bool
	home    *int
	away    *int
}

// AuditRaw runs the defect detectors over the vendor home_score/away_score
// columns. Only meaningful when EventLog.HasVendorScores is true.
func AuditRaw(events []Event) AuditResult {
	rows := make([]scoreRow, len(events))
	for i, ev := range events {
		rows[i] = scoreRow{
			game:    ev.GameID,
			key:     orderKey{ev.Order, ev.Seq},
			scoring: ev.ScoringPlay,
			home:    ev.HomeScore,
			away:    ev.AwayScore,
		}
	}
	return audit(rows)
}

// AuditRepaired runs the same detectors over the rebuilt
// home_score_fix/away_score_fix columns. The scoring flag is the patched one.
func AuditRepaired(events []RepairedEvent) AuditResult {
	rows := make([]scoreRow, len(events))
	for i, ev := range events {
		home, away := ev.HomeScoreFix, ev.AwayScoreFix
		rows[i] = scoreRow{
			game:    ev.GameID,
			key:     orderKey{ev.Order, ev.Seq},
			scoring: ev.ScoringPlay,
			home:    &home,
			away:    &away,
		}
	}
	return audit(rows)
}

// audit compares every row with its predecessor in play order. A missing
// cell yields no delta for that side: it can neither jump negative nor
// move the total. Phantom and silent checks need a previous home score.
func audit(rows []scoreRow) AuditResult {
	groups := groupByGame(len(rows),
		func(i int) string { return rows[i].game },
		func(i int) orderKey { return rows[i].key })

	res := AuditResult{TotalRows: len(rows), TotalGames: len(groups)}
	for _, g := range groups {
		var neg, phantom, silent bool
		for k := 1; k < len(g.rows); k++ {
			prev, cur := rows[g.rows[k-1]], rows[g.rows[k]]
			dHome, okHome := delta(prev.home, cur.home)
			dAway, okAway := delta(prev.away, cur.away)

			if (okHome && dHome < 0) || (okAway && dAway < 0) {
				res.NegativeJumpRows++
				neg = true
			}
			if prev.home == nil {
				continue
			}
			total := dHome + dAway
			switch {
			case !cur.scoring && total != 0:
				res.PhantomScoringRows++
				phantom = true
			case cur.scoring && total == 0:
				res.SilentScoringRows++
				silent = true
			}
		}
		if neg {
			res.NegativeJumpGames++
		}
		if phantom {
			res.PhantomScoringGames++
		}
		if silent {
			res.SilentScoringGames++
		}
	}
	return res
}

// delta returns cur-prev, or (0, false) when either side is missing.
func delta(prev, cur *int) (int, bool) {
	if prev == nil || cur == nil {
		return 0, false
	}
	return *cur - *prev, true
}
