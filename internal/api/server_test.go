package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-pbp/internal/cache"
	"github.com/albapepper/scoracle-pbp/internal/config"
	"github.com/albapepper/scoracle-pbp/internal/metrics"
)

const repairBody = `{
  "events": {
    "columns": ["game_id","order","type","text","team_abbr","scoring_play","score_value","home_score","away_score","coordinate_x"],
    "rows": [
      ["1","1","Jump Ball","jump ball","","false","","0","0",""],
      ["1","2","Free Throw - 1 of 2","James makes free throw 1 of 2","LAL","false","","1","0",""],
      ["1","3","3PT Jump Shot","Tatum makes three point jumper","BOS","true","","1","3","23.5"],
      ["1","4","Substitution","sub in","LAL","false","","4","3",""]
    ]
  },
  "games": {
    "columns": ["game_id","home_team_abbrev","away_team_abbrev","home_team_score","away_team_score"],
    "rows": [["1","LAL","BOS","1","3"]]
  }
}`

func testConfig() *config.Config {
	return &config.Config{
		Tolerance:         1,
		MatchThreshold:    0.995,
		Workers:           1,
		MaxBodyMB:         1,
		CORSAllowOrigins:  []string{"http://localhost:3000"},
		RateLimitEnabled:  false,
		RateLimitRequests: 30,
		RateLimitWindow:   time.Minute,
		CacheEnabled:      true,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *chi.Mux {
	t.Helper()
	c := cache.New(cfg.CacheEnabled, 0)
	t.Cleanup(c.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(nil, c, metrics.New(), cfg, logger)
}

func do(router http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := do(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = do(router, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_configured")
}

func TestRepair_EndToEnd(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := do(router, http.MethodPost, "/api/v1/pbp/repair", repairBody, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var resp struct {
		RunID          string `json:"run_id"`
		Report         struct {
			Patch struct {
				FTFlagFixed int `json:"ft_flag_fixed"`
			} `json:"patch"`
			PreAudit struct {
				PhantomScoringRows int `json:"phantom_scoring_rows"`
			} `json:"pre_audit"`
			Gates struct {
				EnginesEnabled bool    `json:"engines_enabled"`
				MatchRate      float64 `json:"final_score_match_rate"`
			} `json:"gates"`
		} `json:"report"`
		Reconciliation []map[string]any `json:"reconciliation"`
		Events         *json.RawMessage `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, resp.Report.Patch.FTFlagFixed)
	assert.Equal(t, 2, resp.Report.PreAudit.PhantomScoringRows, "unflagged free throw and substitution both move the vendor score")
	assert.True(t, resp.Report.Gates.EnginesEnabled)
	assert.Equal(t, 1.0, resp.Report.Gates.MatchRate)
	require.Len(t, resp.Reconciliation, 1)
	assert.Equal(t, true, resp.Reconciliation[0]["pbp_reliable"])
	assert.Nil(t, resp.Events)

	// Identical request is served from cache.
	again := do(router, http.MethodPost, "/api/v1/pbp/repair", repairBody, nil)
	assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
	assert.Equal(t, etag, again.Header().Get("ETag"))
	assert.Equal(t, rec.Body.String(), again.Body.String())

	// The report is retrievable by run id with conditional GET.
	got := do(router, http.MethodGet, "/api/v1/pbp/reports/"+resp.RunID, "", nil)
	require.Equal(t, http.StatusOK, got.Code)
	reportETag := got.Header().Get("ETag")
	notModified := do(router, http.MethodGet, "/api/v1/pbp/reports/"+resp.RunID, "", http.Header{"If-None-Match": {reportETag}})
	assert.Equal(t, http.StatusNotModified, notModified.Code)

	missing := do(router, http.MethodGet, "/api/v1/pbp/reports/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestRepair_IncludeEvents(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rec := do(router, http.MethodPost, "/api/v1/pbp/repair?include_events=true", repairBody, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events struct {
			Columns []string   `json:"columns"`
			Rows    [][]string `json:"rows"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events.Rows, 4)
	assert.Contains(t, resp.Events.Columns, "coordinate_x")
	assert.Contains(t, resp.Events.Columns, "home_score_fix")
	last := resp.Events.Rows[3]
	assert.Equal(t, "true", last[len(last)-1], "pbp_reliable")
}

func TestRepair_Errors(t *testing.T) {
	router := newTestRouter(t, testConfig())

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"invalid json", `{"events":`, http.StatusBadRequest, "INVALID_JSON"},
		{"missing games", `{"events":{"columns":["game_id"],"rows":[]}}`, http.StatusBadRequest, "MISSING_TABLE"},
		{"bad threshold", strings.Replace(repairBody, `"games"`, `"threshold": 1.5, "games"`, 1), http.StatusBadRequest, "INVALID_OPTIONS"},
		{"schema error", `{"events":{"columns":["game_id","order","type","text","team_abbr"],"rows":[]},"games":{"columns":["game_id","home"],"rows":[]}}`, http.StatusUnprocessableEntity, "SCHEMA_ERROR"},
		{"persist without db", repairBody, http.StatusServiceUnavailable, "DB_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/v1/pbp/repair"
			if tt.code == "DB_UNAVAILABLE" {
				target += "?persist=true"
			}
			rec := do(router, http.MethodPost, target, tt.body, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
		})
	}
}

func TestRepair_BodyLimit(t *testing.T) {
	router := newTestRouter(t, testConfig())

	big := `{"pad":"` + string(bytes.Repeat([]byte("x"), 2<<20)) + `"}`
	rec := do(router, http.MethodPost, "/api/v1/pbp/repair", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEnabled = true
	cfg.RateLimitRequests = 2
	router := newTestRouter(t, cfg)

	first := do(router, http.MethodPost, "/api/v1/pbp/repair", repairBody, nil)
	assert.Equal(t, http.StatusOK, first.Code)
	second := do(router, http.MethodPost, "/api/v1/pbp/repair", repairBody, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// Health checks are not rate limited.
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, testConfig())
	do(router, http.MethodPost, "/api/v1/pbp/repair", repairBody, nil)

	rec := do(router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scoracle_pbp_repair_runs_total{outcome="enabled"} 1`)
}
