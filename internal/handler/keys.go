package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/server/middleware"
	"github.com/keywarden/keywarden/internal/service"
)

// KeysHandler serves the API key lifecycle endpoints.
type KeysHandler struct {
	keys   *service.KeyService
	logger *slog.Logger
}

// NewKeysHandler creates a new KeysHandler.
func NewKeysHandler(keys *service.KeyService, logger *slog.Logger) *KeysHandler {
	return &KeysHandler{keys: keys, logger: logger}
}

type createKeyRequest struct {
	Notes string `json:"notes"`
}

// createKeyResponse carries the raw key. This is the only response that
// ever contains it.
type createKeyResponse struct {
	Message string `json:"message"`
	APIKey  string `json:"api_key"`
	ID      int64  `json:"id"`
}

// keyResponse is the public view of a credential.
type keyResponse struct {
	ID        int64     `json:"id"`
	IsAdmin   bool      `json:"is_admin"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func toKeyResponse(c *model.Credential) keyResponse {
	return keyResponse{
		ID:        c.ID,
		IsAdmin:   c.IsAdmin,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

// Create issues a regular API key.
// POST /api/v1/keys/create
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false, "Regular API key created")
}

// CreateAdmin issues an admin API key.
// POST /api/v1/keys/create/admin
func (h *KeysHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true, "Admin API key created")
}

func (h *KeysHandler) create(w http.ResponseWriter, r *http.Request, isAdmin bool, message string) {
	var req createKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	issued, err := h.keys.CreateKey(r.Context(), middleware.GetCredential(r.Context()), req.Notes, isAdmin)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create API key")
		return
	}

	writeJSON(w, http.StatusCreated, createKeyResponse{
		Message: message,
		APIKey:  issued.Secret,
		ID:      issued.Credential.ID,
	})
}

// Delete permanently removes an API key.
// DELETE /api/v1/keys/delete/{keyId}
func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "keyId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid API key ID")
		return
	}

	if err := h.keys.DeleteKey(r.Context(), middleware.GetCredential(r.Context()), id); err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to delete API key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List returns metadata for every API key.
// GET /api/v1/keys
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.keys.ListKeys(r.Context(), middleware.GetCredential(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to list API keys")
		return
	}

	out := make([]keyResponse, len(creds))
	for i := range creds {
		out[i] = toKeyResponse(&creds[i])
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: out,
		Meta:     &model.ResponseMeta{Count: len(out)},
	})
}

// Me returns the caller's own key metadata.
// GET /api/v1/keys/me
func (h *KeysHandler) Me(w http.ResponseWriter, r *http.Request) {
	cred := middleware.GetCredential(r.Context())
	if cred == nil {
		writeError(w, http.StatusUnauthorized, "Invalid API key")
		return
	}
	writeJSON(w, http.StatusOK, toKeyResponse(cred))
}
