package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/logger"
)

// SessionIDHeader identifies the shopper's cart on every cart request.
const SessionIDHeader = "X-Session-ID"

// RequestLogger builds a request-scoped logger carrying correlation_id,
// session_id, trace_id and span_id and stores it with logger.NewContext.
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if sessionID := r.Header.Get(SessionIDHeader); sessionID != "" {
				ctx = logger.WithSessionID(ctx, sessionID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
