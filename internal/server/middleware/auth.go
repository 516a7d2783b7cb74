package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keywarden/keywarden/internal/model"
	"github.com/keywarden/keywarden/internal/service"
)

type contextKeyAuth string

const (
	// CredentialKey is the context key for the authenticated credential.
	CredentialKey contextKeyAuth = "auth_credential"

	// DefaultAPIKeyHeader carries the raw API key.
	DefaultAPIKeyHeader = "X-API-Key"
)

// Authenticate returns an HTTP middleware that resolves the raw key in
// header to a stored credential. On success the credential is attached to
// the request context and recorded in the audit slot, if one is present.
// A missing or unmatched key gets a 401 with {"message":"Invalid API key"}.
func Authenticate(authSvc *service.AuthService, header string, logger *slog.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := authSvc.Resolve(r.Context(), r.Header.Get(header))
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					writeJSONError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				logger.Error("api key resolution failed",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeJSONError(w, http.StatusInternalServerError, "Failed to validate API key")
				return
			}

			if slot := auditSlotFrom(r.Context()); slot != nil {
				id := cred.ID
				slot.credentialID = &id
			}

			ctx := context.WithValue(r.Context(), CredentialKey, cred)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCredential extracts the authenticated credential from the context.
// Returns nil if the request was not authenticated.
func GetCredential(ctx context.Context) *model.Credential {
	if c, ok := ctx.Value(CredentialKey).(*model.Credential); ok {
		return c
	}
	return nil
}

// WithCredential returns a copy of ctx carrying cred.
func WithCredential(ctx context.Context, cred *model.Credential) context.Context {
	return context.WithValue(ctx, CredentialKey, cred)
}

// writeJSONError writes the {"message": ...} body used across the API. The
// handler package has its own helpers; importing it here would be a cycle.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Message: message})
}
