package pbp

var eventColumns = []string{
	"game_id", "order", "period", "clock", "type", "text", "team_abbr",
	"scoring_play", "score_value", "home_score", "away_score",
}

// evRow builds an event row in eventColumns order.
func evRow(game, order, typ, text, team, scoring, value, home, away string) []string {
	return []string{game, order, "1", "12:00", typ, text, team, scoring, value, home, away}
}

func eventsTable(rows ...[]string) RawTable {
	return RawTable{Columns: eventColumns, Rows: rows}
}

func gamesTableV1(rows ...[]string) RawTable {
	return RawTable{
		Columns: []string{"game_id", "home_team_abbr", "visitor_team_abbr", "home_score", "visitor_score"},
		Rows:    rows,
	}
}

func gamesTableV2(rows ...[]string) RawTable {
	return RawTable{
		Columns: []string{"game_id", "home_team_abbrev", "away_team_abbrev", "home_team_score", "away_team_score"},
		Rows:    rows,
	}
}

func mustEvents(t RawTable) []Event {
	log, err := ParseEvents(t)
	if err != nil {
		panic(err)
	}
	return log.Events
}

func mustGames(t RawTable) map[string]GameRef {
	g, err := NormalizeGames(t)
	if err != nil {
		panic(err)
	}
	return g.Lookup()
}

func ptr(n int) *int { return &n }
