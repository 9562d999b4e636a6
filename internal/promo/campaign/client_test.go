package campaign

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httpclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.Retries = 0
	cfg.Timeout = time.Second
	return NewClient(srv.URL+"/", httpclient.New(cfg), discardLogger())
}

func TestClient_Validate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/promo-codes/SUMMER10", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"code":"SUMMER10","discount_percent":"10.00"}}`))
	})

	p, err := c.Validate(context.Background(), "SUMMER10")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER10", p.Code)
	assert.Equal(t, "10", p.DiscountPercent.String())
}

func TestClient_Validate_NumericPercent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"discount_percent":12.5}}`))
	})

	p, err := c.Validate(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "X", p.Code)
	assert.Equal(t, "12.5", p.DiscountPercent.String())
}

func TestClient_Validate_EscapesCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/promo-codes/A%2FB", r.URL.RawPath)
		_, _ = w.Write([]byte(`{"data":{"code":"A/B","discount_percent":5}}`))
	})

	_, err := c.Validate(context.Background(), "A/B")
	require.NoError(t, err)
}

func TestClient_Validate_Rejected(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone, http.StatusUnprocessableEntity} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})

			_, err := c.Validate(context.Background(), "OLD")
			assert.ErrorIs(t, err, promo.ErrInvalidCode)
		})
	}
}

func TestClient_Validate_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"UPSTREAM","message":"db down"}}`))
	})

	_, err := c.Validate(context.Background(), "X")
	require.Error(t, err)
	assert.NotErrorIs(t, err, promo.ErrInvalidCode)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestClient_Validate_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	})

	_, err := c.Validate(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing data")
}

func TestClient_Redeem(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/promo-codes/SUMMER10/use", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Redeem(context.Background(), "SUMMER10"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Redeem_NotRepeatedOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := httpclient.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.BackoffMax = time.Millisecond
	c := NewClient(srv.URL, httpclient.New(cfg), discardLogger())

	err := c.Redeem(context.Background(), "SUMMER10")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Redeem_Exhausted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	assert.ErrorIs(t, c.Redeem(context.Background(), "USED"), promo.ErrInvalidCode)
}

func TestClient_WithCircuitBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := httpclient.DefaultConfig()
	cfg.Retries = 0
	breakerCfg := httpclient.DefaultBreakerConfig("campaign-test")
	breakerCfg.MinRequests = 2
	breakerCfg.FailureRatio = 0.5
	breaker := httpclient.NewBreaker(httpclient.New(cfg), breakerCfg, discardLogger())
	c := NewClient(srv.URL, breaker, discardLogger())

	for i := 0; i < 2; i++ {
		_, err := c.Validate(context.Background(), "X")
		require.Error(t, err)
	}

	_, err := c.Validate(context.Background(), "X")
	assert.ErrorIs(t, err, httpclient.ErrCircuitOpen)
}
