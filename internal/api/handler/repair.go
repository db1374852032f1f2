package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/scoracle-pbp/internal/api/respond"
	"github.com/albapepper/scoracle-pbp/internal/cache"
	"github.com/albapepper/scoracle-pbp/internal/metrics"
	"github.com/albapepper/scoracle-pbp/internal/pbp"
	"github.com/albapepper/scoracle-pbp/internal/report"
	"github.com/albapepper/scoracle-pbp/internal/table"
)

// RepairRequest is the body of POST /api/v1/pbp/repair. Tolerance and
// threshold fall back to the server defaults.
type RepairRequest struct {
	Events    *pbp.RawTable `json:"events"`
	Games     *pbp.RawTable `json:"games"`
	Tolerance *int          `json:"tolerance,omitempty"`
	Threshold *float64      `json:"threshold,omitempty"`
}

// RepairResponse carries the QA report and per-game reconciliation. The
// repaired event table is included only when include_events=true.
type RepairResponse struct {
	RunID          string                  `json:"run_id"`
	Report         json.RawMessage         `json:"report"`
	Reconciliation []pbp.ReconciliationRow `json:"reconciliation"`
	Events         *pbp.RawTable           `json:"events,omitempty"`
}

func reportKey(runID string) string { return "report:" + runID }

// Repair runs the full pipeline on the posted tables.
//
// Query parameters: include_events=true adds the repaired table to the
// response; persist=true stores the run (requires a database).
func (h *Handler) Repair(w http.ResponseWriter, r *http.Request) {
	body, ok := respond.ReadBody(w, r, int64(h.cfg.MaxBodyMB)<<20)
	if !ok {
		return
	}

	query := r.URL.Query()
	includeEvents := query.Get("include_events") == "true"
	persist := query.Get("persist") == "true"

	key := cache.Key(body, []byte(boolFlag(includeEvents)))
	if !persist {
		if data, etag, ok := h.cache.Get(key); ok {
			respond.WriteJSON(w, data, etag, 0, respond.CacheHit)
			return
		}
	}

	var req RepairRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respond.WriteErrorDetail(w, r, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", err.Error())
		return
	}
	if req.Events == nil || req.Games == nil {
		respond.WriteError(w, r, http.StatusBadRequest, "MISSING_TABLE", "Both events and games tables are required")
		return
	}

	opts := pbp.Options{
		Tolerance:      h.cfg.Tolerance,
		MatchThreshold: h.cfg.MatchThreshold,
		Workers:        h.cfg.Workers,
	}
	if req.Tolerance != nil {
		opts.Tolerance = *req.Tolerance
	}
	if req.Threshold != nil {
		opts.MatchThreshold = *req.Threshold
	}
	if err := opts.Validate(); err != nil {
		respond.WriteErrorDetail(w, r, http.StatusBadRequest, "INVALID_OPTIONS", "Invalid run options", err.Error())
		return
	}

	start := time.Now()
	res, err := pbp.Run(*req.Events, *req.Games, opts, h.logger)
	if err != nil {
		var schemaErr *pbp.SchemaError
		if errors.As(err, &schemaErr) {
			h.metrics.ObserveFailure(metrics.OutcomeSchemaError)
			respond.WriteSchemaError(w, r, schemaErr)
			return
		}
		h.metrics.ObserveFailure(metrics.OutcomeError)
		h.logger.Error("Repair run failed", "error", err)
		respond.WriteError(w, r, http.StatusInternalServerError, "REPAIR_FAILED", "Repair run failed")
		return
	}
	h.metrics.ObserveRun(res, time.Since(start))

	rep := report.New("api", opts, res)
	doc, err := rep.Marshal()
	if err != nil {
		h.logger.Error("QA report invalid", "run_id", rep.RunID, "error", err)
		respond.WriteError(w, r, http.StatusInternalServerError, "REPORT_INVALID", "QA report failed validation")
		return
	}

	if persist {
		if h.store == nil {
			respond.WriteError(w, r, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "No database configured for persistence")
			return
		}
		if err := h.store.SaveRun(r.Context(), rep, res.Reconciliation.Rows); err != nil {
			h.logger.Error("Persist run failed", "run_id", rep.RunID, "error", err)
			respond.WriteError(w, r, http.StatusInternalServerError, "PERSIST_FAILED", "Could not store run")
			return
		}
		h.logger.Info("Run persisted", "run_id", rep.RunID, "games", len(res.Reconciliation.Rows))
	}

	resp := RepairResponse{
		RunID:          rep.RunID,
		Report:         doc,
		Reconciliation: res.Reconciliation.Rows,
	}
	if resp.Reconciliation == nil {
		resp.Reconciliation = []pbp.ReconciliationRow{}
	}
	if includeEvents {
		events := table.Repaired(res.Events, res.ExtraColumns)
		resp.Events = &events
	}
	data, err := json.Marshal(resp)
	if err != nil {
		respond.WriteError(w, r, http.StatusInternalServerError, "ENCODE_FAILED", "Could not encode response")
		return
	}

	h.cache.Set(reportKey(rep.RunID), doc, cache.TTLRepair)
	if persist {
		respond.WriteJSON(w, data, cache.ComputeETag(data), 0, respond.CacheBypass)
		return
	}
	etag := h.cache.Set(key, data, cache.TTLRepair)
	respond.WriteJSON(w, data, etag, 0, respond.CacheMiss)
}

// GetReport serves a recent QA report by run id from the cache.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	data, etag, ok := h.cache.Get(reportKey(runID))
	if !ok {
		respond.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "No recent report for run "+runID)
		return
	}
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLRepair, respond.CacheHit)
}

func boolFlag(b bool) string {
	if b {
		return "events"
	}
	return ""
}
