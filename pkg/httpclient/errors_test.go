package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_StructuredNotFound(t *testing.T) {
	err := ParseResponseError(response(http.StatusNotFound,
		`{"error":{"code":"NOT_FOUND","message":"promo code SPRING not found"}}`), "campaign-service")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, "NOT_FOUND", statusErr.Code)
	assert.Equal(t, "promo code SPRING not found", statusErr.Message)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, apperrors.HTTPStatus(err))
	assert.Equal(t, "campaign-service answered 404 NOT_FOUND: promo code SPRING not found", err.Error())
}

func TestParseResponseError_Gone(t *testing.T) {
	err := ParseResponseError(response(http.StatusGone,
		`{"error":{"code":"PROMO_EXPIRED","message":"expired"}}`), "campaign-service")

	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)
	assert.True(t, apperrors.HasCode(err, "PROMO_EXPIRED"))
}

func TestParseResponseError_BadRequest(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadRequest, `{"error":{"code":"X","message":"bad"}}`), "campaign-service")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParseResponseError_ServerErrorHidesDownstreamMessage(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadGateway, `<html>bad gateway</html>`), "campaign-service")

	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
	assert.Contains(t, err.Error(), "<html>bad gateway</html>")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "campaign-service is unavailable", appErr.Message)
}

func TestParseResponseError_OtherStatusKept(t *testing.T) {
	err := ParseResponseError(response(http.StatusTeapot, ``), "campaign-service")
	assert.Equal(t, http.StatusTeapot, apperrors.HTTPStatus(err))
	assert.True(t, apperrors.HasCode(err, http.StatusText(http.StatusTeapot)))
}
