package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httputil"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/logger"
)

var panicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cart_http_panics_recovered_total",
	Help: "Handler panics turned into 500 responses",
})

// Recovery turns a panicking handler into a 500 INTERNAL_ERROR response and
// logs the panic with the request's session and correlation fields.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				switch v {
				case nil:
					return
				case http.ErrAbortHandler:
					panic(v)
				}

				panicsRecovered.Inc()
				logger.WithContext(r.Context(), l).ErrorContext(r.Context(), "handler panic",
					slog.String("panic", fmt.Sprint(v)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("session_id", r.Header.Get(SessionIDHeader)),
					slog.String("stack", string(debug.Stack())),
				)

				httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
