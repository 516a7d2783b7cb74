package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/keywarden/keywarden/internal/credential"
	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/openapi"
	"github.com/keywarden/keywarden/internal/server/middleware"
	"github.com/keywarden/keywarden/internal/service"
	"github.com/keywarden/keywarden/internal/store"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store  *store.Store
	hasher *credential.Hasher
	router chi.Router
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv creates a fresh test environment with an in-memory store and a
// Chi router with routes mounted. The caller is injected per request by
// asKey instead of going through Authenticate.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.Open("", store.Options{})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := discardLogger()
	hasher := credential.NewHasher(bcrypt.MinCost)
	keySvc := service.NewKeyService(st, credential.NewGenerator(), hasher, 0, nil, logger)
	auditSvc := service.NewAuditService(st, 0, nil, logger)

	keys := NewKeysHandler(keySvc, logger)
	audit := NewAuditHandler(auditSvc, logger)
	spec := NewOpenAPIHandler(openapi.GenerateSpec("test", "/", ""))

	r := chi.NewRouter()
	r.Get("/openapi.json", spec.ServeSpec)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/keys/create", keys.Create)
		r.Post("/keys/create/admin", keys.CreateAdmin)
		r.Delete("/keys/delete/{keyId}", keys.Delete)
		r.Get("/keys", keys.List)
		r.Get("/keys/me", keys.Me)
		r.Get("/audit", audit.List)
	})

	return &testEnv{store: st, hasher: hasher, router: r}
}

// seedKey stores a credential for raw and returns it.
func (e *testEnv) seedKey(t *testing.T, raw string, isAdmin bool) *model.Credential {
	t.Helper()
	hashed, err := e.hasher.Hash(raw)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	cred := &model.Credential{HashedSecret: hashed, IsAdmin: isAdmin, Notes: raw}
	if err := e.store.CreateCredential(context.Background(), cred); err != nil {
		t.Fatalf("seedKey: %v", err)
	}
	return cred
}

// do executes an HTTP request as caller (nil for anonymous) and returns the
// recorder.
func (e *testEnv) do(t *testing.T, caller *model.Credential, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		req = req.WithContext(middleware.WithCredential(req.Context(), caller))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(data)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func decodeMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body model.ErrorResponse
	decodeJSON(t, rr, &body)
	return body.Message
}
