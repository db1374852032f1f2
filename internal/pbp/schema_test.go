package pbp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGames_BothConventions(t *testing.T) {
	v1, err := NormalizeGames(gamesTableV1([]string{"18447", "LAL", "BOS", "110", "104"}))
	require.NoError(t, err)
	v2, err := NormalizeGames(gamesTableV2([]string{"18447.0", "LAL", "BOS", "110", "104"}))
	require.NoError(t, err)

	assert.Equal(t, "v1", v1.Convention)
	assert.Equal(t, "v2", v2.Convention)
	assert.Equal(t, v1.Games, v2.Games)

	ref := v1.Lookup()["18447"]
	assert.Equal(t, "LAL", ref.HomeTeam)
	assert.Equal(t, "BOS", ref.AwayTeam)
	require.NotNil(t, ref.HomeFinal)
	assert.Equal(t, 110, *ref.HomeFinal)
	assert.Equal(t, 104, *ref.AwayFinal)
}

func TestNormalizeGames_SchemaError(t *testing.T) {
	t.Run("neither convention", func(t *testing.T) {
		_, err := NormalizeGames(RawTable{Columns: []string{"game_id", "home_team_abbr", "home_score"}})
		var se *SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "games", se.Table)
		assert.Equal(t, []string{"visitor_team_abbr", "visitor_score"}, se.Missing)
	})

	t.Run("no game_id", func(t *testing.T) {
		_, err := NormalizeGames(RawTable{Columns: []string{"home_team_abbr", "visitor_team_abbr", "home_score", "visitor_score"}})
		var se *SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, []string{"game_id"}, se.Missing)
	})

	t.Run("mixed conventions are not accepted", func(t *testing.T) {
		_, err := NormalizeGames(RawTable{Columns: []string{"game_id", "home_team_abbr", "visitor_team_abbr", "home_team_score", "away_team_score"}})
		assert.Error(t, err)
	})
}

func TestNormalizeGames_BlankFinalsAndIDs(t *testing.T) {
	g, err := NormalizeGames(gamesTableV1(
		[]string{"", "LAL", "BOS", "1", "2"},
		[]string{"7", "LAL", "BOS", "", "NaN"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, g.Skipped)
	require.Len(t, g.Games, 1)
	assert.Nil(t, g.Games[0].HomeFinal)
	assert.Nil(t, g.Games[0].AwayFinal)
}

func TestParseEvents(t *testing.T) {
	t.Run("missing required column", func(t *testing.T) {
		_, err := ParseEvents(RawTable{Columns: []string{"game_id", "order", "type", "text"}})
		var se *SchemaError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "events", se.Table)
		assert.Equal(t, []string{"team_abbr"}, se.Missing)
	})

	t.Run("optional columns absent", func(t *testing.T) {
		log, err := ParseEvents(RawTable{
			Columns: []string{"game_id", "order", "type", "text", "team_abbr", "coordinate_x"},
			Rows:    [][]string{{"5", "3.0", "Jumpshot", "x makes 12-foot jumper", "BOS", "14.5"}},
		})
		require.NoError(t, err)
		assert.False(t, log.HasVendorScores)
		assert.Equal(t, []string{"coordinate_x"}, log.ExtraColumns)

		ev := log.Events[0]
		assert.Equal(t, "5", ev.GameID)
		require.NotNil(t, ev.Order)
		assert.Equal(t, 3, *ev.Order)
		assert.False(t, ev.ScoringPlay)
		assert.Nil(t, ev.ScoreValue)
		assert.Equal(t, []string{"14.5"}, ev.Extra)
	})

	t.Run("typed cells", func(t *testing.T) {
		log, err := ParseEvents(eventsTable(
			evRow("1", "", "Free Throw", "makes", " LAL ", "True", "1.0", "3", "nan"),
		))
		require.NoError(t, err)
		assert.True(t, log.HasVendorScores)
		ev := log.Events[0]
		assert.Nil(t, ev.Order)
		assert.Equal(t, "LAL", ev.TeamAbbr)
		assert.True(t, ev.ScoringPlay)
		assert.Equal(t, 1, *ev.ScoreValue)
		assert.Equal(t, 3, *ev.HomeScore)
		assert.Nil(t, ev.AwayScore)
	})

	t.Run("repaired table round trip drops derived columns", func(t *testing.T) {
		log, err := ParseEvents(RawTable{
			Columns: []string{"game_id", "order", "type", "text", "team_abbr", "home_score_raw", "away_score_raw", "home_score_fix", "pbp_reliable"},
			Rows:    [][]string{{"1", "1", "Jumpshot", "", "LAL", "2", "0", "2", "true"}},
		})
		require.NoError(t, err)
		assert.True(t, log.HasVendorScores)
		assert.Empty(t, log.ExtraColumns)
	})
}

func TestParseEvents_PeriodAndGameID(t *testing.T) {
	log, err := ParseEvents(RawTable{
		Columns: []string{"game_id", "order", "period", "type", "text", "team_abbr"},
		Rows: [][]string{
			{"1", "1", "2", "Jumpshot", "", "LAL"},
			{"1", "2", "", "Timeout", "", ""},
			{" ", "3", "2", "Timeout", "", ""},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, log.Events[0].Period)
	assert.Equal(t, 2, *log.Events[0].Period)
	assert.Nil(t, log.Events[1].Period)
	assert.Equal(t, "", log.Events[2].GameID)
	assert.Equal(t, 1, log.MissingGameID)
}

func TestParseOptInt(t *testing.T) {
	tests := map[string]*int{
		"12":     ptr(12),
		" 12.0 ": ptr(12),
		"-3":     ptr(-3),
		"":       nil,
		"nan":    nil,
		"2.5":    nil,
		"inf":    nil,
		"1e30":   nil,
		"-1e30":  nil,
		"9.3e18": nil,
		"abc":    nil,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, parseOptInt(in))
		})
	}
}
