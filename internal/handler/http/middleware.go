package http

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httputil"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/logger"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/middleware"
)

const maxSessionIDLength = 128

// SessionFromHeader requires an X-Session-ID of 1 to 128 characters and puts
// it in the request context, where the handlers and the log fields read it.
func SessionFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(middleware.SessionIDHeader))
		if id == "" || len(id) > maxSessionIDLength {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{
					Code:    "INVALID_SESSION",
					Message: middleware.SessionIDHeader + " header is required (at most 128 characters)",
				},
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(logger.WithSessionID(r.Context(), id)))
	})
}

func sessionIDFromContext(ctx context.Context) string {
	return logger.SessionIDFromContext(ctx)
}

// ContentTypeJSON answers 415 to a request body declared as anything other
// than application/json. A body without Content-Type is read as JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut
		if ct := r.Header.Get("Content-Type"); hasBody && ct != "" {
			if mediaType, _, err := mime.ParseMediaType(ct); err != nil || mediaType != "application/json" {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
