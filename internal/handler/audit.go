package handler

import (
	"log/slog"
	"math"
	"net/http"

	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/server/middleware"
	"github.com/keywarden/keywarden/internal/service"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// AuditHandler serves the request audit trail.
type AuditHandler struct {
	audit  *service.AuditService
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(audit *service.AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// List returns audit entries newest first.
// GET /api/v1/audit?credential_id=&limit=&offset=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	credID, err := queryInt64Ptr(r, "credential_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid credential_id")
		return
	}

	filter := model.AuditFilter{
		CredentialID: credID,
		Limit:        clampInt(queryInt(r, "limit", defaultAuditLimit), 1, maxAuditLimit),
		Offset:       clampInt(queryInt(r, "offset", 0), 0, math.MaxInt),
	}

	entries, total, err := h.audit.List(r.Context(), middleware.GetCredential(r.Context()), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list audit entries")
		return
	}

	if entries == nil {
		entries = []model.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: entries,
		Meta: &model.ResponseMeta{
			Count:  len(entries),
			Total:  &total,
			Limit:  filter.Limit,
			Offset: filter.Offset,
		},
	})
}
