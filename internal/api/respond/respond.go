// Package respond writes the repair API's JSON envelopes: cached run
// payloads and structured errors tagged with the request id.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

// ErrorBody is the payload of every API error. Table and Missing are set
// only for input schema errors.
type ErrorBody struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	Detail    string   `json:"detail,omitempty"`
	Table     string   `json:"table,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// ErrorResponse is the standard error shape for all API errors.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// CacheStatus is reported in the X-Cache header.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
	// CacheBypass marks responses that were never eligible for the cache
	// (persisted runs).
	CacheBypass CacheStatus = "BYPASS"
)

// WriteJSON writes raw JSON bytes with ETag and cache headers. A ttl of
// zero marks the response as not storable by clients.
func WriteJSON(w http.ResponseWriter, data []byte, etag string, ttl time.Duration, status CacheStatus) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("ETag", etag)
	h.Set("Vary", "Accept-Encoding")
	h.Set("X-Cache", string(status))
	if ttl <= 0 {
		h.Set("Cache-Control", "no-store")
	} else {
		h.Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(ttl.Seconds())))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// WriteNotModified sends a 304 with the matching ETag.
func WriteNotModified(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusNotModified)
}

// WriteError sends a structured JSON error response.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeError(w, r, status, ErrorBody{Code: code, Message: message})
}

// WriteErrorDetail sends a structured error with additional detail.
func WriteErrorDetail(w http.ResponseWriter, r *http.Request, status int, code, message, detail string) {
	writeError(w, r, status, ErrorBody{Code: code, Message: message, Detail: detail})
}

// WriteSchemaError reports an unrecognized input table as 422 with the
// offending table and its missing columns.
func WriteSchemaError(w http.ResponseWriter, r *http.Request, err *pbp.SchemaError) {
	writeError(w, r, http.StatusUnprocessableEntity, ErrorBody{
		Code:    "SCHEMA_ERROR",
		Message: "Input table schema not recognized",
		Detail:  err.Error(),
		Table:   err.Table,
		Missing: err.Missing,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	if r != nil {
		body.RequestID = middleware.GetReqID(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: body})
}

// ReadBody reads at most limit bytes of the request body. On failure the
// error response is already written and ok is false.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) (body []byte, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err == nil {
		return body, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteErrorDetail(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Request body exceeds the configured limit", fmt.Sprintf("limit is %d bytes", tooLarge.Limit))
		return nil, false
	}
	WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Could not read request body")
	return nil, false
}

// WriteJSONObject marshals a Go value to JSON and writes it.
// Used for small responses that are never cached (root, health checks).
func WriteJSONObject(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
