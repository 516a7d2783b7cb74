package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the {"message": ...} error body.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{Message: message})
}

// NotFound answers unknown API routes with the standard error body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// readJSON decodes the request body as JSON into v. An empty body leaves v
// untouched. The body is closed after decoding regardless of success or
// failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// queryInt64Ptr extracts an optional int64 query parameter. A missing value
// yields nil; a malformed one is an error.
func queryInt64Ptr(r *http.Request, key string) (*int64, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// writeServiceError maps a service error to its HTTP status and message.
// Anything unrecognised is logged and answered with a generic 500 so store
// internals never reach the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "Invalid API key")
	case errors.Is(err, service.ErrInsufficientPrivilege):
		writeError(w, http.StatusForbidden, "Insufficient privileges")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "API key not found")
	case errors.Is(err, service.ErrDuplicateHash):
		writeError(w, http.StatusBadRequest, "API key collision, please retry.")
	default:
		attrs := []any{"error", err, "method", r.Method, "path", r.URL.Path}
		if errors.Is(err, credential.ErrEntropySourceUnavailable) {
			attrs = append(attrs, "cause", "entropy")
		}
		logger.Error(fallback, attrs...)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
