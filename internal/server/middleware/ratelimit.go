package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per client IP
// to requestsPerMinute using a sliding window. A nil counter keeps the
// counts in process; pass a shared counter (see internal/ratelimit) when
// several instances must share one budget. Rejected requests get a 429
// with the standard {"message": ...} body.
func RateLimit(requestsPerMinute int, counter httprate.LimitCounter, logger *slog.Logger) func(http.Handler) http.Handler {
	opts := []httprate.Option{
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
		}),
		httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("rate limit counter failed",
				"error", err,
				"request_id", GetRequestID(r.Context()),
			)
			writeJSONError(w, http.StatusInternalServerError, "An unexpected error occurred")
		}),
	}
	if counter != nil {
		opts = append(opts, httprate.WithLimitCounter(counter))
	}
	return httprate.Limit(requestsPerMinute, time.Minute, opts...)
}
