package pbp

import "log/slog"

// maxLoggedMismatches caps the per-game warnings emitted by Reconcile.
const maxLoggedMismatches = 5

// Reconciliation is the per-game comparison table plus its aggregate.
type Reconciliation struct {
	Rows          []ReconciliationRow
	ReliableGames int
	TotalGames    int
	// MatchRate is ReliableGames/TotalGames, or 0 when there are no games.
	MatchRate float64
}

// Reliable returns the set of game ids that reconciled.
func (r Reconciliation) Reliable() map[string]bool {
	m := make(map[string]bool, r.ReliableGames)
	for _, row := range r.Rows {
		if row.PBPReliable {
			m[row.GameID] = true
		}
	}
	return m
}

// Reconcile compares each game's last rebuilt score (by play order) to the
// official box-score final. A game is reliable iff both absolute
// differences are within opts.Tolerance. Games absent from the reference
// table, or with blank finals, are unreliable. Rows are in game_id order.
func Reconcile(repaired []RepairedEvent, games map[string]GameRef, opts Options, logger *slog.Logger) Reconciliation {
	if logger == nil {
		logger = slog.Default()
	}

	groups := groupByGame(len(repaired),
		func(i int) string { return repaired[i].GameID },
		func(i int) orderKey { return orderKey{repaired[i].Order, repaired[i].Seq} })

	rows := make([]ReconciliationRow, len(groups))
	forEachGame(groups, opts.Workers, func(gi int, g gameGroup) {
		last := repaired[g.rows[len(g.rows)-1]]
		row := ReconciliationRow{
			GameID:       g.gameID,
			PBPHomeFinal: last.HomeScoreFix,
			PBPAwayFinal: last.AwayScoreFix,
		}
		if ref, ok := games[g.gameID]; ok && ref.HomeFinal != nil && ref.AwayFinal != nil {
			row.HasBoxScore = true
			row.BoxHomeFinal = *ref.HomeFinal
			row.BoxAwayFinal = *ref.AwayFinal
			row.HomeDiff = absInt(row.PBPHomeFinal - row.BoxHomeFinal)
			row.AwayDiff = absInt(row.PBPAwayFinal - row.BoxAwayFinal)
			row.PBPReliable = row.HomeDiff <= opts.Tolerance && row.AwayDiff <= opts.Tolerance
		}
		rows[gi] = row
	})

	rec := Reconciliation{Rows: rows, TotalGames: len(rows)}
	for _, row := range rows {
		if row.PBPReliable {
			rec.ReliableGames++
		}
	}
	if rec.TotalGames > 0 {
		rec.MatchRate = float64(rec.ReliableGames) / float64(rec.TotalGames)
	}

	bad := rec.TotalGames - rec.ReliableGames
	logger.Info("Reconciliation complete",
		"reliable", rec.ReliableGames, "total", rec.TotalGames,
		"match_rate", rec.MatchRate, "unreliable", bad)

	logged := 0
	for _, row := range rows {
		if row.PBPReliable {
			continue
		}
		if logged == maxLoggedMismatches {
			logger.Warn("Further unreliable games omitted", "more", bad-maxLoggedMismatches)
			break
		}
		if row.HasBoxScore {
			logger.Warn("Unreliable game",
				"game_id", row.GameID,
				"pbp_home", row.PBPHomeFinal, "pbp_away", row.PBPAwayFinal,
				"box_home", row.BoxHomeFinal, "box_away", row.BoxAwayFinal,
				"home_diff", row.HomeDiff, "away_diff", row.AwayDiff)
		} else {
			logger.Warn("Unreliable game (no official final)",
				"game_id", row.GameID,
				"pbp_home", row.PBPHomeFinal, "pbp_away", row.PBPAwayFinal)
		}
		logged++
	}

	return rec
}

// Apply broadcasts each game's reliability flag onto its rows. The input
// slice is not modified.
func (r Reconciliation) Apply(events []RepairedEvent) []RepairedEvent {
	reliable := r.Reliable()
	out := make([]RepairedEvent, len(events))
	for i, ev := range events {
		ev.PBPReliable = reliable[ev.GameID]
		out[i] = ev
	}
	return out
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
