package bdl

import (
	"context"
	"fmt"
	"strconv"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

// FetchResult tracks counts and per-game errors from a fetch run.
type FetchResult struct {
	Games          int
	GamesWithPlays int
	Plays          int
	Errors         []string
}

// AddErrorf records a formatted error message.
func (r *FetchResult) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the fetch.
func (r *FetchResult) Summary() string {
	return fmt.Sprintf("games=%d games_with_plays=%d plays=%d errors=%d",
		r.Games, r.GamesWithPlays, r.Plays, len(r.Errors))
}

// Fetch pulls the games in a date range and then the plays of each game.
// A failed game is recorded in the result and skipped; only a failure to
// list the games is returned as an error.
func (h *NBAHandler) Fetch(ctx context.Context, startDate, endDate string, season int) (games, plays pbp.RawTable, result FetchResult, err error) {
	h.logger.Info("Fetching NBA games...", "start", startDate, "end", endDate)
	games, err = h.GetGames(ctx, startDate, endDate, season)
	if err != nil {
		return pbp.RawTable{}, pbp.RawTable{}, result, err
	}
	result.Games = len(games.Rows)
	h.logger.Info("NBA games done", "count", result.Games)

	plays = pbp.RawTable{Columns: PlayColumns}
	for i, row := range games.Rows {
		gameID, convErr := strconv.Atoi(row[0])
		if convErr != nil {
			result.AddErrorf("game id %q: %v", row[0], convErr)
			continue
		}
		rows, playErr := h.GetPlays(ctx, gameID)
		if playErr != nil {
			if ctx.Err() != nil {
				return pbp.RawTable{}, pbp.RawTable{}, result, ctx.Err()
			}
			result.AddErrorf("%v", playErr)
			continue
		}
		if len(rows) > 0 {
			result.GamesWithPlays++
		}
		result.Plays += len(rows)
		plays.Rows = append(plays.Rows, rows...)

		if (i+1)%10 == 0 {
			h.logger.Info("Play-by-play progress", "games", i+1, "of", result.Games, "plays", result.Plays)
		}
	}

	h.logger.Info("NBA fetch complete", "summary", result.Summary())
	return games, plays, result, nil
}
