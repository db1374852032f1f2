package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

func TestObserveRun(t *testing.T) {
	r := New()
	res := &pbp.Result{
		Events: make([]pbp.RepairedEvent, 4),
		Patch:  pbp.PatchStats{FTFlagFixed: 2, ScoreValueInferred: 1},
		Gates: pbp.GateResult{
			FinalScoreMatchRate: 0.5,
			ReliableGames:       1,
			UnreliableGames:     1,
		},
	}
	r.ObserveRun(res, 30*time.Millisecond)
	r.ObserveFailure(OutcomeSchemaError)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues(OutcomeBlocked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues(OutcomeSchemaError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.rowsProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.patchFixes.WithLabelValues("ft_flag")))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.matchRate))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRun(&pbp.Result{}, time.Second)
		r.ObserveFailure(OutcomeError)
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveRun(&pbp.Result{Gates: pbp.GateResult{EnginesEnabled: true}}, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scoracle_pbp_repair_runs_total{outcome="enabled"} 1`)
}
