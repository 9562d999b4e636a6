// Package httputil writes the {"data"} / {"error"} JSON envelope every cart
// endpoint answers with.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/logger"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/validator"
)

// Response is the envelope. Exactly one of Data and Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope. RequestID echoes the
// correlation ID so a shopper's report can be matched to the logs.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Wording for errors that reach the handler without an AppError around them.
var bareErrors = map[int]ErrorResponse{
	http.StatusNotFound:            {Code: "NOT_FOUND", Message: "resource not found"},
	http.StatusBadRequest:          {Code: "INVALID_INPUT"},
	http.StatusServiceUnavailable:  {Code: "SERVICE_UNAVAILABLE", Message: "a dependency is unavailable"},
	http.StatusInternalServerError: {Code: "INTERNAL_ERROR", Message: "an internal error occurred"},
}

// WriteJSON encodes v with the given status. An encoding failure after the
// header is sent is dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes v under "data".
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError answers with the status and public wording for err and logs it
// when it is a 500. The request-scoped logger is used when the request
// logger middleware set one, fallback otherwise.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := publicError(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status == http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: &body})
}

// publicError decides what the client sees. An AppError below 500 speaks for
// itself; an internal one, or any error the service did not classify, is
// reduced to a generic 500.
func publicError(err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Status != http.StatusInternalServerError {
		return appErr.Status, ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	status := apperrors.HTTPStatus(err)
	body, ok := bareErrors[status]
	if !ok {
		status = http.StatusInternalServerError
		body = bareErrors[status]
	}
	if status == http.StatusBadRequest {
		body.Message = err.Error()
	}
	return status, body
}

// WriteValidationError answers 400. Errors from the validator package list
// the offending fields; anything else, such as a malformed body, is reported
// as INVALID_INPUT with its text.
func WriteValidationError(w http.ResponseWriter, err error) {
	body := ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		body = ErrorResponse{Code: "VALIDATION_ERROR", Message: "request validation failed", Fields: valErr.Fields()}
	}
	WriteJSON(w, http.StatusBadRequest, Response{Error: &body})
}
