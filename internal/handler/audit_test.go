package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/keywarden/keywarden/internal/model"
)

func (e *testEnv) seedAudit(t *testing.T, credID *int64, status int) {
	t.Helper()
	entry := &model.AuditEntry{
		CredentialID:  credID,
		Endpoint:      "/api/v1/keys/me",
		Method:        "GET",
		StatusCode:    status,
		SourceAddress: "127.0.0.1",
	}
	if err := e.store.CreateAuditEntry(context.Background(), entry); err != nil {
		t.Fatalf("seedAudit: %v", err)
	}
}

type auditListResponse struct {
	Resource []model.AuditEntry `json:"resource"`
	Meta     model.ResponseMeta `json:"meta"`
}

func TestListAudit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedKey(t, "admin", true)
	for i := 0; i < 3; i++ {
		env.seedAudit(t, &admin.ID, http.StatusOK)
	}
	env.seedAudit(t, nil, http.StatusUnauthorized)

	rr := env.do(t, admin, "GET", "/api/v1/audit?limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp auditListResponse
	decodeJSON(t, rr, &resp)
	if len(resp.Resource) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Resource))
	}
	if resp.Meta.Total == nil || *resp.Meta.Total != 4 {
		t.Errorf("total = %v, want 4", resp.Meta.Total)
	}
	if resp.Resource[0].StatusCode != http.StatusUnauthorized || resp.Resource[0].CredentialID != nil {
		t.Errorf("expected newest entry first, got %+v", resp.Resource[0])
	}

	rr = env.do(t, admin, "GET", fmt.Sprintf("/api/v1/audit?credential_id=%d", admin.ID), nil)
	resp = auditListResponse{}
	decodeJSON(t, rr, &resp)
	if len(resp.Resource) != 3 {
		t.Errorf("filtered: expected 3 entries, got %d", len(resp.Resource))
	}
}

func TestListAudit_Empty(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedKey(t, "admin", true)

	rr := env.do(t, admin, "GET", "/api/v1/audit?credential_id=999", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var raw map[string]interface{}
	decodeJSON(t, rr, &raw)
	if list, ok := raw["resource"].([]interface{}); !ok || len(list) != 0 {
		t.Errorf("expected empty array, got %v", raw["resource"])
	}
}

func TestListAudit_BadFilter(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedKey(t, "admin", true)

	rr := env.do(t, admin, "GET", "/api/v1/audit?credential_id=abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListAudit_NonAdmin(t *testing.T) {
	env := newTestEnv(t)
	regular := env.seedKey(t, "regular", false)

	rr := env.do(t, regular, "GET", "/api/v1/audit", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
