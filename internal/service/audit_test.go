package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/keywarden/keywarden/internal/metrics"
	"github.com/keywarden/keywarden/internal/model"
)

func TestRecordAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.seedKey(t, "bootstrap", true)

	env.audit.Record(ctx, &admin.ID, "/api/v1/keys/create", http.MethodPost, http.StatusCreated, "10.0.0.1")
	env.audit.Record(ctx, nil, "/api/v1/keys/create", http.MethodPost, http.StatusUnauthorized, "10.0.0.2")

	entries, total, err := env.audit.List(ctx, admin, model.AuditFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("got %d entries (total %d), want 2", len(entries), total)
	}

	// Newest first.
	if entries[0].CredentialID != nil {
		t.Errorf("unauthenticated entry has credential id %v", *entries[0].CredentialID)
	}
	if entries[0].StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", entries[0].StatusCode)
	}
	if entries[1].CredentialID == nil || *entries[1].CredentialID != admin.ID {
		t.Errorf("credential id = %v, want %d", entries[1].CredentialID, admin.ID)
	}
	if entries[1].SourceAddress != "10.0.0.1" {
		t.Errorf("source = %q", entries[1].SourceAddress)
	}

	filtered, total, err := env.audit.List(ctx, admin, model.AuditFilter{CredentialID: &admin.ID})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if total != 1 || len(filtered) != 1 {
		t.Errorf("filtered = %d (total %d), want 1", len(filtered), total)
	}

	if v := counterValue(t, env.metrics, "test_audit_entries_total", "", ""); v != 2 {
		t.Errorf("audit_entries = %v, want 2", v)
	}
}

func TestRecordSurvivesCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedKey(t, "bootstrap", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env.audit.Record(ctx, &admin.ID, "/api/v1/keys/me", http.MethodGet, http.StatusOK, "127.0.0.1")

	n, err := env.store.CountAuditEntries(context.Background(), model.AuditFilter{})
	if err != nil {
		t.Fatalf("CountAuditEntries: %v", err)
	}
	if n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	m := metrics.New("test")
	a := NewAuditService(&fakeAuditStore{err: errBoom}, 0, m, discardLogger())

	// Must not panic or block.
	a.Record(context.Background(), nil, "/api/v1/keys/me", http.MethodGet, http.StatusOK, "127.0.0.1")

	if v := counterValue(t, m, "test_audit_write_failures_total", "", ""); v != 1 {
		t.Errorf("audit_write_failures = %v, want 1", v)
	}
}

func TestListAuditRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	regular := env.seedKey(t, "regular", false)

	if _, _, err := env.audit.List(context.Background(), regular, model.AuditFilter{}); !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatalf("expected ErrInsufficientPrivilege, got %v", err)
	}
	if _, _, err := env.audit.List(context.Background(), nil, model.AuditFilter{}); !errors.Is(err, ErrInsufficientPrivilege) {
		t.Fatalf("nil caller: expected ErrInsufficientPrivilege, got %v", err)
	}
}

func TestListAuditStoreError(t *testing.T) {
	a := NewAuditService(&fakeAuditStore{err: errBoom}, 0, nil, discardLogger())
	_, _, err := a.List(context.Background(), &model.Credential{ID: 1, IsAdmin: true}, model.AuditFilter{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
