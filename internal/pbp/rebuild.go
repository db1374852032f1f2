package pbp

import "strings"

// RebuildResult is the output of Rebuild.
type RebuildResult struct {
	// Events are in input order; cumulative columns follow play order.
	Events []RepairedEvent
	// UnresolvedScoringRows counts scoring rows whose team matched neither
	// side. Their points are attributed to nobody.
	UnresolvedScoringRows int
}

// Rebuild computes a monotonic cumulative score per game from scoring_play,
// score_value and team_abbr. The vendor home_score/away_score columns are
// never read: each row contributes a non-negative increment to at most one
// side, so negative jumps cannot occur in the output.
//
// Rows are cumulated in play order (order ascending, missing order last,
// then original row position). Each game's running sum is independent, so
// the work fans out across opts.Workers goroutines. Rows with a blank
// game_id belong to no game and keep zero score columns.
func Rebuild(patched []PatchedEvent, games map[string]GameRef, opts Options) RebuildResult {
	out := make([]RepairedEvent, len(patched))
	unresolved := 0

	for i, p := range patched {
		side := resolveSide(p.TeamAbbr, games[p.GameID])
		re := RepairedEvent{PatchedEvent: p, Side: side}

		points := rowPoints(p.Event)
		switch side {
		case SideHome:
			re.HomePointsRow = points
		case SideAway:
			re.AwayPointsRow = points
		default:
			if p.ScoringPlay {
				unresolved++
			}
		}
		out[i] = re
	}

	groups := groupByGame(len(out),
		func(i int) string { return out[i].GameID },
		func(i int) orderKey { return orderKey{out[i].Order, out[i].Seq} })

	forEachGame(groups, opts.Workers, func(_ int, g gameGroup) {
		home, away := 0, 0
		for _, i := range g.rows {
			home += out[i].HomePointsRow
			away += out[i].AwayPointsRow
			out[i].HomeScoreFix = home
			out[i].AwayScoreFix = away
			out[i].MarginFix = home - away
		}
	})

	return RebuildResult{Events: out, UnresolvedScoringRows: unresolved}
}

// rowPoints is score_value on a scoring play, else 0. A missing or negative
// score_value contributes nothing.
func rowPoints(ev Event) int {
	if !ev.ScoringPlay || ev.ScoreValue == nil || *ev.ScoreValue < 0 {
		return 0
	}
	return *ev.ScoreValue
}

// resolveSide matches a team abbreviation against the game's home and away
// identifiers, ignoring case and surrounding space. An empty abbreviation
// or a game missing from the reference table is unresolved.
func resolveSide(team string, ref GameRef) Side {
	team = strings.TrimSpace(team)
	if team == "" {
		return SideUnresolved
	}
	switch {
	case ref.HomeTeam != "" && strings.EqualFold(team, ref.HomeTeam):
		return SideHome
	case ref.AwayTeam != "" && strings.EqualFold(team, ref.AwayTeam):
		return SideAway
	default:
		return SideUnresolved
	}
}
