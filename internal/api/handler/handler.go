// Package handler provides HTTP handlers for all API endpoints.
// The repair endpoint runs the pipeline in-process on posted tables; the
// database is optional and only used for health checks and persistence.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/scoracle-pbp/internal/api/respond"
	"github.com/albapepper/scoracle-pbp/internal/cache"
	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/metrics"
	"github.com/albapepper/scoracle-pbp/internal/pbp"
	"github.com/albapepper/scoracle-pbp/internal/report"
)

// Store is the persistence the handlers need. *db.Pool satisfies it.
type Store interface {
	HealthCheck(ctx context.Context) error
	SaveRun(ctx context.Context, rep report.Report, rows []pbp.ReconciliationRow) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store   Store
	cache   *cache.Cache
	metrics *metrics.Recorder
	cfg     *config.Config
	logger  *slog.Logger
}

// New creates a Handler with shared dependencies. store may be nil when no
// database is configured.
func New(store Store, c *cache.Cache, m *metrics.Recorder, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   store,
		cache:   c,
		metrics: m,
		cfg:     cfg,
		logger:  logger,
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Scoracle PBP Repair API",
		"version": "1.0.0",
		"status":  "running",
		"endpoints": []string{
			"POST /api/v1/pbp/repair",
			"GET /api/v1/pbp/reports/{runID}",
			"GET /health",
			"GET /health/db",
			"GET /health/cache",
			"GET /metrics",
		},
		"defaults": map[string]interface{}{
			"tolerance":       h.cfg.Tolerance,
			"match_threshold": h.cfg.MatchThreshold,
		},
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unavailable",
			"database":  "not_configured",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	if err := h.store.HealthCheck(r.Context()); err != nil {
		h.logger.Warn("Database health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
