// Package metrics exposes Prometheus metrics for repair runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

const namespace = "scoracle"
const subsystem = "pbp"

// Run outcomes used as the "outcome" label.
const (
	OutcomeEnabled     = "enabled"
	OutcomeBlocked     = "blocked"
	OutcomeSchemaError = "schema_error"
	OutcomeError       = "error"
)

// Recorder owns a private registry and the repair-run collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	rowsProcessed prometheus.Counter
	games         *prometheus.CounterVec
	auditRows     *prometheus.CounterVec
	patchFixes    *prometheus.CounterVec
	matchRate     prometheus.Gauge
	runDuration   prometheus.Histogram
}

// New creates a recorder with Go runtime and process collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "repair_runs_total",
			Help:      "Repair runs by outcome",
		}, []string{"outcome"}),
		rowsProcessed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rows_processed_total",
			Help:      "Play-by-play rows repaired",
		}),
		games: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "games_reconciled_total",
			Help:      "Games reconciled against official finals, by reliability",
		}, []string{"reliable"}),
		auditRows: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "audit_violation_rows_total",
			Help:      "Rows flagged by the post-repair audit, by check",
		}, []string{"check"}),
		patchFixes: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "patch_fixes_total",
			Help:      "Metadata patches applied, by kind",
		}, []string{"kind"}),
		matchRate: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "final_score_match_rate",
			Help:      "Final-score match rate of the most recent run",
		}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full repair run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

// ObserveRun records a completed pipeline run.
func (r *Recorder) ObserveRun(res *pbp.Result, elapsed time.Duration) {
	if r == nil || res == nil {
		return
	}
	outcome := OutcomeBlocked
	if res.Gates.EnginesEnabled {
		outcome = OutcomeEnabled
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.rowsProcessed.Add(float64(len(res.Events)))

	r.games.WithLabelValues("true").Add(float64(res.Gates.ReliableGames))
	r.games.WithLabelValues("false").Add(float64(res.Gates.UnreliableGames))

	r.auditRows.WithLabelValues("negative_jump").Add(float64(res.PostAudit.NegativeJumpRows))
	r.auditRows.WithLabelValues("phantom_scoring").Add(float64(res.PostAudit.PhantomScoringRows))
	r.auditRows.WithLabelValues("silent_scoring").Add(float64(res.PostAudit.SilentScoringRows))

	r.patchFixes.WithLabelValues("ft_flag").Add(float64(res.Patch.FTFlagFixed))
	r.patchFixes.WithLabelValues("score_value").Add(float64(res.Patch.ScoreValueInferred))

	r.matchRate.Set(res.Gates.FinalScoreMatchRate)
	r.runDuration.Observe(elapsed.Seconds())
}

// ObserveFailure records a run that did not produce a result.
func (r *Recorder) ObserveFailure(outcome string) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}
