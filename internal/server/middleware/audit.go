package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/keywarden/keywarden/internal/service"
)

type contextKeyAudit string

const auditSlotKey contextKeyAudit = "audit_slot"

// auditSlot is filled by Authenticate once the caller is known, so the
// outer Audit middleware can attribute the entry after the handler returns.
type auditSlot struct {
	credentialID *int64
}

func auditSlotFrom(ctx context.Context) *auditSlot {
	if s, ok := ctx.Value(auditSlotKey).(*auditSlot); ok {
		return s
	}
	return nil
}

// Audit returns an HTTP middleware that appends one audit entry per request
// once the response status is known. It must wrap Authenticate. Requests
// that never authenticated are recorded with a null credential.
func Audit(auditSvc *service.AuditService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slot := &auditSlot{}
			ctx := context.WithValue(r.Context(), auditSlotKey, slot)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			auditSvc.Record(ctx, slot.credentialID, r.URL.Path, r.Method, statusOf(ww), sourceAddress(r))
		})
	}
}

// sourceAddress returns the peer host, or the client a trusted proxy
// reported when RealIP is installed.
func sourceAddress(r *http.Request) string {
	return hostOnly(r.RemoteAddr)
}
