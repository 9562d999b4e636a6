package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes specific to cart requests.
const (
	AttrSessionID = attribute.Key("cart.session_id")
	AttrLineIndex = attribute.Key("cart.line_index")
)

// Tracing starts a server span per request, continuing any W3C trace context
// sent by the caller. Once routing is done the span is named after the chi
// route and tagged with the cart session and, on line item routes, the line
// index. Only 5xx responses mark the span as failed; 4xx are the shopper's
// mistakes, not the service's.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			propagator := otel.GetTextMapPropagator()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.ClientAddress(PeerIP(r)),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			if sessionID := r.Header.Get(SessionIDHeader); sessionID != "" {
				span.SetAttributes(AttrSessionID.String(sessionID))
			}
			propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(rec.status),
			)
			if index := chi.URLParamFromCtx(r.Context(), "index"); index != "" {
				if n, err := strconv.Atoi(index); err == nil {
					span.SetAttributes(AttrLineIndex.Int(n))
				}
			}
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}
		})
	}
}
