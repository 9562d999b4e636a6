package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrConflict,
		ErrUnprocessable, ErrInternal, ErrServiceUnavail,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("redis connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "redis connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "session not found"}
	assert.Equal(t, "NOT_FOUND: session not found", appErr.Error())
}

func TestConstructors_StatusAndSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		status   int
		sentinel error
	}{
		{"not found", New(ErrNotFound, "NOT_FOUND", "promo code SUMMER not found", nil), http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, ErrInvalidInput},
		{"invalid input code", InvalidInputCode("INVALID_INDEX", "bad index"), http.StatusBadRequest, ErrInvalidInput},
		{"conflict", Conflict("PROMO_SUPERSEDED", "stale"), http.StatusConflict, ErrConflict},
		{"unprocessable", Unprocessable("EMPTY_CART", "empty"), http.StatusUnprocessableEntity, ErrUnprocessable},
		{"unavailable", ServiceUnavailable("down", errors.New("dial")), http.StatusServiceUnavailable, ErrServiceUnavail},
		{"internal", Internal(errors.New("nil map")), http.StatusInternalServerError, ErrInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.ErrorIs(t, tc.err, tc.sentinel)
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
		})
	}
}

func TestHTTPStatus_WrappedSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("save: %w", ErrConflict)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("decode: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(&AppError{Code: "X", Err: ErrServiceUnavail}))
}

func TestNew_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(ErrServiceUnavail, "PROMO_BACKEND_DOWN", "promo backend unreachable", cause)

	assert.ErrorIs(t, err, ErrServiceUnavail)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
}

func TestInternal_HidesCauseFromMessage(t *testing.T) {
	err := Internal(errors.New("pool exhausted"))

	assert.Equal(t, "an internal error occurred", err.Message)
	assert.Contains(t, err.Error(), "pool exhausted")
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("apply: %w", Unprocessable("INVALID_PROMO_CODE", "invalid promo code"))
	assert.True(t, HasCode(err, "INVALID_PROMO_CODE"))
	assert.False(t, HasCode(err, "EMPTY_CART"))
	assert.False(t, HasCode(errors.New("plain"), "EMPTY_CART"))
}
