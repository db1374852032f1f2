package pbp

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reconcileTables(t *testing.T, events, games RawTable, tolerance int, logger *slog.Logger) ([]RepairedEvent, Reconciliation) {
	t.Helper()
	lookup := mustGames(games)
	opts := Options{Tolerance: tolerance, Workers: 1}
	rebuilt := Rebuild(mustPatched(mustEvents(events)), lookup, opts)
	return rebuilt.Events, Reconcile(rebuilt.Events, lookup, opts, logger)
}

func TestReconcile_ExactMatch(t *testing.T) {
	_, rec := reconcileTables(t,
		eventsTable(
			evRow("1", "1", "Layup", "makes layup", "LAL", "true", "2", "", ""),
			evRow("1", "2", "3PT Jump Shot", "makes three", "LAL", "true", "3", "", ""),
		),
		gamesTableV1([]string{"1", "LAL", "BOS", "5", "0"}),
		DefaultTolerance, nil,
	)

	require.Len(t, rec.Rows, 1)
	row := rec.Rows[0]
	assert.Equal(t, 5, row.PBPHomeFinal)
	assert.Equal(t, 0, row.PBPAwayFinal)
	assert.Equal(t, 0, row.HomeDiff)
	assert.Equal(t, 0, row.AwayDiff)
	assert.True(t, row.PBPReliable)
	assert.Equal(t, 1.0, rec.MatchRate)
}

func TestReconcile_MixedGames(t *testing.T) {
	events, rec := reconcileTables(t,
		eventsTable(
			evRow("2", "1", "Layup", "makes layup", "NYK", "true", "2", "", ""),
			evRow("1", "1", "Layup", "makes layup", "LAL", "true", "2", "", ""),
		),
		gamesTableV1(
			[]string{"1", "LAL", "BOS", "2", "0"},
			[]string{"2", "NYK", "MIA", "7", "0"},
		),
		DefaultTolerance, nil,
	)

	require.Len(t, rec.Rows, 2)
	assert.Equal(t, "1", rec.Rows[0].GameID)
	assert.Equal(t, "2", rec.Rows[1].GameID)
	assert.True(t, rec.Rows[0].PBPReliable)
	assert.False(t, rec.Rows[1].PBPReliable)
	assert.Equal(t, 5, rec.Rows[1].HomeDiff)
	assert.Equal(t, 0.5, rec.MatchRate)

	applied := rec.Apply(events)
	assert.False(t, applied[0].PBPReliable)
	assert.True(t, applied[1].PBPReliable)
	// Apply returns a copy
	assert.False(t, events[1].PBPReliable)
}

func TestReconcile_Tolerance(t *testing.T) {
	events := eventsTable(evRow("1", "1", "Layup", "makes layup", "LAL", "true", "2", "", ""))
	games := gamesTableV1([]string{"1", "LAL", "BOS", "3", "1"})

	_, rec := reconcileTables(t, events, games, 1, nil)
	assert.True(t, rec.Rows[0].PBPReliable, "diff of exactly the tolerance reconciles")

	_, rec = reconcileTables(t, events, games, 0, nil)
	assert.False(t, rec.Rows[0].PBPReliable)
}

func TestReconcile_LastRowByOrder(t *testing.T) {
	// The physically last row has the lowest order; the final score must
	// come from the highest order.
	_, rec := reconcileTables(t,
		eventsTable(
			evRow("1", "2", "Layup", "makes layup", "LAL", "true", "2", "", ""),
			evRow("1", "1", "Jump Ball", "jump ball", "", "false", "", "", ""),
		),
		gamesTableV1([]string{"1", "LAL", "BOS", "2", "0"}),
		0, nil,
	)
	assert.Equal(t, 2, rec.Rows[0].PBPHomeFinal)
	assert.True(t, rec.Rows[0].PBPReliable)
}

func TestReconcile_MissingReference(t *testing.T) {
	_, rec := reconcileTables(t,
		eventsTable(
			evRow("1", "1", "Jump Ball", "jump ball", "", "false", "", "", ""),
			evRow("2", "1", "Jump Ball", "jump ball", "", "false", "", "", ""),
		),
		gamesTableV1([]string{"2", "LAL", "BOS", "", ""}),
		DefaultTolerance, nil,
	)
	require.Len(t, rec.Rows, 2)
	for _, row := range rec.Rows {
		assert.False(t, row.HasBoxScore)
		assert.False(t, row.PBPReliable)
	}
	assert.Equal(t, 0.0, rec.MatchRate)
}

func TestReconcile_Empty(t *testing.T) {
	rec := Reconcile(nil, nil, DefaultOptions(), nil)
	assert.Empty(t, rec.Rows)
	assert.Equal(t, 0, rec.TotalGames)
	assert.Equal(t, 0.0, rec.MatchRate)
}

func TestReconcile_LogsFirstFiveMismatches(t *testing.T) {
	var rows [][]string
	var refs [][]string
	for i := 1; i <= 7; i++ {
		id := string(rune('0' + i))
		rows = append(rows, evRow(id, "1", "Layup", "makes layup", "LAL", "true", "2", "", ""))
		refs = append(refs, []string{id, "LAL", "BOS", "50", "50"})
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	_, rec := reconcileTables(t, eventsTable(rows...), gamesTableV1(refs...), 1, logger)

	assert.Equal(t, 7, rec.TotalGames-rec.ReliableGames)
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte(`msg="Unreliable game"`)))
	assert.Contains(t, buf.String(), "more=2")
}
