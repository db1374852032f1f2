package pbp

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRun_EndToEnd(t *testing.T) {
	events := eventsTable(
		// game 1 reconciles: 5-3 after a patched free throw and an inferred three
		evRow("1", "1", "Jump Ball", "jump ball", "", "false", "", "0", "0"),
		evRow("1", "2", "Layup", "makes layup", "LAL", "true", "2", "2", "0"),
		evRow("1", "3", "Rebound", "rebound", "BOS", "false", "", "4", "0"), // vendor phantom +2
		evRow("1", "4", "3PT Jump Shot", "makes 26-foot three point jumper", "BOS", "true", "", "2", "3"),
		evRow("1", "5", "Free Throw - 1 of 1", "makes free throw 1 of 1", "LAL", "false", "", "3", "3"),
		evRow("1", "6", "Layup", "makes layup", "LAL", "true", "2", "5", "3"),
		// game 2 is off by 5
		evRow("2", "1", "Jump Ball", "jump ball", "", "false", "", "0", "0"),
		evRow("2", "2", "Dunk", "makes dunk", "MIA", "true", "2", "0", "2"),
	)
	games := gamesTableV2(
		[]string{"1", "LAL", "BOS", "5", "3"},
		[]string{"2", "NYK", "MIA", "5", "2"},
	)

	res, err := Run(events, games, Options{Tolerance: 1, MatchThreshold: 0.995, Workers: 2}, quiet)
	require.NoError(t, err)

	require.Len(t, res.Events, 8)
	assert.Equal(t, 1, res.Patch.FTFlagFixed)
	assert.Equal(t, 1, res.Patch.InferredThree)

	require.NotNil(t, res.PreAudit)
	assert.Equal(t, 1, res.PreAudit.NegativeJumpRows)
	assert.Equal(t, 2, res.PreAudit.PhantomScoringRows)

	last := res.Events[5]
	assert.Equal(t, 5, last.HomeScoreFix)
	assert.Equal(t, 3, last.AwayScoreFix)
	assert.Equal(t, 2, last.MarginFix)
	assert.True(t, last.PBPReliable)
	assert.False(t, res.Events[7].PBPReliable)

	assert.Zero(t, res.PostAudit.NegativeJumpRows)
	assert.Zero(t, res.PostAudit.PhantomScoringRows)

	g := res.Gates
	assert.Equal(t, 0.5, g.FinalScoreMatchRate)
	assert.Equal(t, 1, g.ReliableGames)
	assert.Equal(t, 2, g.TotalGames)
	assert.Equal(t, 1, g.UnreliableGames)
	assert.False(t, g.EnginesEnabled)
}

func TestRun_ThresholdAtMatchRate(t *testing.T) {
	events := eventsTable(
		evRow("1", "1", "Layup", "makes layup", "LAL", "true", "2", "", ""),
		evRow("2", "1", "Layup", "makes layup", "NYK", "true", "2", "", ""),
	)
	games := gamesTableV1(
		[]string{"1", "LAL", "BOS", "2", "0"},
		[]string{"2", "NYK", "MIA", "9", "0"},
	)
	res, err := Run(events, games, Options{Tolerance: 1, MatchThreshold: 0.5}, quiet)
	require.NoError(t, err)
	assert.True(t, res.Gates.EnginesEnabled)
}

func TestRun_NoVendorScoreColumns(t *testing.T) {
	events := RawTable{
		Columns: []string{"game_id", "order", "type", "text", "team_abbr", "scoring_play", "score_value"},
		Rows:    [][]string{{"1", "1", "Layup", "makes layup", "LAL", "true", "2"}},
	}
	res, err := Run(events, gamesTableV1([]string{"1", "LAL", "BOS", "2", "0"}), DefaultOptions(), quiet)
	require.NoError(t, err)
	assert.Nil(t, res.PreAudit)
	assert.True(t, res.Gates.EnginesEnabled)
}

func TestRun_BlankGameIDBelongsToNoGame(t *testing.T) {
	events := eventsTable(
		evRow("1", "1", "Layup", "makes layup", "LAL", "true", "2", "2", "0"),
		evRow("", "2", "Timeout", "timeout", "", "false", "", "2", "0"),
	)
	games := gamesTableV1([]string{"1", "LAL", "BOS", "2", "0"})

	res, err := Run(events, games, DefaultOptions(), quiet)
	require.NoError(t, err)

	require.Len(t, res.Reconciliation.Rows, 1)
	assert.Equal(t, "1", res.Reconciliation.Rows[0].GameID)
	assert.Equal(t, 1, res.Gates.TotalGames)
	assert.Equal(t, 1.0, res.Gates.FinalScoreMatchRate)
	assert.Equal(t, 1, res.Gates.MissingGameIDRows)
	assert.True(t, res.Gates.EnginesEnabled)

	require.NotNil(t, res.PreAudit)
	assert.Equal(t, 1, res.PreAudit.TotalGames)
	assert.Equal(t, 2, res.PreAudit.TotalRows)
	assert.Equal(t, 1, res.PostAudit.TotalGames)

	require.Len(t, res.Events, 2)
	orphan := res.Events[1]
	assert.Zero(t, orphan.HomeScoreFix)
	assert.False(t, orphan.PBPReliable)
}

func TestRun_DoesNotMutateInput(t *testing.T) {
	events := eventsTable(
		evRow("1", "1", "Free Throw - 1 of 2", "makes free throw 1 of 2", "LAL", "false", "", "1", "0"),
	)
	games := gamesTableV1([]string{"1", "LAL", "BOS", "1", "0"})
	before := eventsTable(
		evRow("1", "1", "Free Throw - 1 of 2", "makes free throw 1 of 2", "LAL", "false", "", "1", "0"),
	)

	_, err := Run(events, games, DefaultOptions(), quiet)
	require.NoError(t, err)
	assert.Equal(t, before, events)
}

func TestRun_Errors(t *testing.T) {
	events := eventsTable()

	_, err := Run(events, RawTable{Columns: []string{"game_id"}}, DefaultOptions(), quiet)
	var se *SchemaError
	assert.True(t, errors.As(err, &se))

	_, err = Run(RawTable{Columns: []string{"game_id"}}, gamesTableV1(), DefaultOptions(), quiet)
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "events", se.Table)

	_, err = Run(events, gamesTableV1(), Options{Tolerance: -1}, quiet)
	assert.Error(t, err)
	assert.False(t, errors.As(err, &se))

	_, err = Run(events, gamesTableV1(), Options{MatchThreshold: 1.5}, quiet)
	assert.Error(t, err)
}

func TestRun_EmptyLog(t *testing.T) {
	res, err := Run(eventsTable(), gamesTableV1(), DefaultOptions(), quiet)
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Equal(t, 0, res.Gates.TotalGames)
	assert.False(t, res.Gates.EnginesEnabled)
}
