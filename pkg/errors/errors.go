package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per response class. Every AppError built here wraps
// exactly one of them, so callers can branch with errors.Is without knowing
// the domain code.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
	ErrUnprocessable  = errors.New("unprocessable request")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
)

// classes is checked in order by HTTPStatus for errors that are not an
// AppError.
var classes = []struct {
	sentinel error
	status   int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrConflict, http.StatusConflict},
	{ErrUnprocessable, http.StatusUnprocessableEntity},
	{ErrServiceUnavail, http.StatusServiceUnavailable},
	{ErrInternal, http.StatusInternalServerError},
}

// AppError is an error with a stable machine readable code for API clients.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError of the given class. class must be one of the
// sentinels above; cause, if any, is joined with it.
func New(class error, code, message string, cause error) *AppError {
	status := http.StatusInternalServerError
	for _, c := range classes {
		if c.sentinel == class {
			status = c.status
			break
		}
	}
	err := class
	if cause != nil {
		err = errors.Join(class, cause)
	}
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// InvalidInput creates a 400 INVALID_INPUT error.
func InvalidInput(message string) *AppError {
	return New(ErrInvalidInput, "INVALID_INPUT", message, nil)
}

// InvalidInputCode creates a 400 error with a domain code such as
// INVALID_INDEX.
func InvalidInputCode(code, message string) *AppError {
	return New(ErrInvalidInput, code, message, nil)
}

// Conflict creates a 409 error.
func Conflict(code, message string) *AppError {
	return New(ErrConflict, code, message, nil)
}

// Unprocessable creates a 422 error for a well formed request that a
// business rule rejects, such as an unknown promo code or an empty cart.
func Unprocessable(code, message string) *AppError {
	return New(ErrUnprocessable, code, message, nil)
}

// ServiceUnavailable creates a 503 error for a failing dependency.
func ServiceUnavailable(message string, cause error) *AppError {
	return New(ErrServiceUnavail, "SERVICE_UNAVAILABLE", message, cause)
}

// Internal creates a 500 error. The message never includes the cause, which
// is only logged.
func Internal(cause error) *AppError {
	return New(ErrInternal, "INTERNAL_ERROR", "an internal error occurred", cause)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus returns the status an error should be answered with.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	for _, c := range classes {
		if errors.Is(err, c.sentinel) {
			return c.status
		}
	}
	return http.StatusInternalServerError
}
