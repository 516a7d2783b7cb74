package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/service"
)

// ---------------------------------------------------------------------------
// queryInt tests
// ---------------------------------------------------------------------------

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		key        string
		defaultVal int
		want       int
	}{
		{"returns default for missing param", "/test", "limit", 25, 25},
		{"parses integer param", "/test?limit=100", "limit", 25, 100},
		{"returns default for non-integer", "/test?limit=abc", "limit", 25, 25},
		{"parses zero", "/test?offset=0", "offset", 10, 0},
		{"parses negative", "/test?offset=-5", "offset", 0, -5},
		{"returns default for empty value", "/test?limit=", "limit", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			got := queryInt(r, tt.key, tt.defaultVal)
			if got != tt.want {
				t.Errorf("queryInt(%q, %d) = %d, want %d", tt.key, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestQueryInt64Ptr(t *testing.T) {
	r := httptest.NewRequest("GET", "/test", nil)
	if v, err := queryInt64Ptr(r, "credential_id"); v != nil || err != nil {
		t.Errorf("missing param: got (%v, %v), want (nil, nil)", v, err)
	}

	r = httptest.NewRequest("GET", "/test?credential_id=42", nil)
	v, err := queryInt64Ptr(r, "credential_id")
	if err != nil || v == nil || *v != 42 {
		t.Errorf("got (%v, %v), want 42", v, err)
	}

	r = httptest.NewRequest("GET", "/test?credential_id=x", nil)
	if _, err := queryInt64Ptr(r, "credential_id"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

// ---------------------------------------------------------------------------
// clampInt tests
// ---------------------------------------------------------------------------

func TestClampInt(t *testing.T) {
	tests := []struct {
		val, min, max, want int
	}{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{50, 1, 10, 10},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		if got := clampInt(tt.val, tt.min, tt.max); got != tt.want {
			t.Errorf("clampInt(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// readJSON tests
// ---------------------------------------------------------------------------

func TestReadJSON(t *testing.T) {
	t.Run("empty body leaves value untouched", func(t *testing.T) {
		req := createKeyRequest{Notes: "unchanged"}
		r := httptest.NewRequest("POST", "/", strings.NewReader(""))
		if err := readJSON(r, &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.Notes != "unchanged" {
			t.Errorf("notes = %q", req.Notes)
		}
	})

	t.Run("invalid JSON is an error", func(t *testing.T) {
		var req createKeyRequest
		r := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
		if err := readJSON(r, &req); err == nil {
			t.Error("expected error")
		}
	})
}

// ---------------------------------------------------------------------------
// writeError / writeJSON tests
// ---------------------------------------------------------------------------

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "Invalid input")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"message":"Invalid input"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"hello":"world"`) {
		t.Errorf("expected JSON body, got: %s", body)
	}
}

// ---------------------------------------------------------------------------
// writeServiceError tests
// ---------------------------------------------------------------------------

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unauthenticated", service.ErrUnauthenticated, 401, "Invalid API key"},
		{"forbidden", service.ErrInsufficientPrivilege, 403, "Insufficient privileges"},
		{"not found", service.ErrNotFound, 404, "API key not found"},
		{"collision", service.ErrDuplicateHash, 400, "API key collision, please retry."},
		{"entropy", fmt.Errorf("%w: device gone", credential.ErrEntropySourceUnavailable), 500, "Failed"},
		{"other", errors.New("disk full at /var/lib/db"), 500, "Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("POST", "/api/v1/keys/create", nil)
			writeServiceError(w, r, discardLogger(), tt.err, "Failed")

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if msg := decodeMessage(t, w); msg != tt.message {
				t.Errorf("message = %q, want %q", msg, tt.message)
			}
		})
	}
}
