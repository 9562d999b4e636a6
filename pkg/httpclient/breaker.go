package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

// ErrCircuitOpen is matched by errors.Is on requests the breaker refused to
// send.
var ErrCircuitOpen = errors.New("circuit open")

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cart_downstream_breaker_state",
		Help: "Downstream circuit breaker state: 0 closed, 1 half-open, 2 open",
	}, []string{"downstream"})

	breakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_downstream_breaker_rejections_total",
		Help: "Downstream requests refused without being sent because the breaker was open",
	}, []string{"downstream"})
)

// BreakerConfig tunes a Breaker.
type BreakerConfig struct {
	// Name labels metrics and logs; use the downstream service name.
	Name string
	// HalfOpenRequests may pass while the breaker is testing recovery.
	HalfOpenRequests uint32
	// Interval clears the counts while closed. Zero never clears them.
	Interval time.Duration
	// OpenTimeout is how long the breaker stays open.
	OpenTimeout time.Duration
	// The breaker trips once FailureRatio is reached over at least
	// MinRequests requests.
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerConfig returns the settings used for the campaign service.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		Interval:         time.Minute,
		OpenTimeout:      30 * time.Second,
		FailureRatio:     0.5,
		MinRequests:      5,
	}
}

// Breaker stops calling a downstream that keeps failing. Transport errors and
// 5xx answers count as failures; a 5xx is returned as a *StatusError so the
// caller never sees the raw response. 4xx answers pass through untouched and
// count as successes, as does a request the caller gave up on.
type Breaker struct {
	next Doer
	cb   *gobreaker.CircuitBreaker[*http.Response]
	name string
}

// NewBreaker wraps next.
func NewBreaker(next Doer, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	state := breakerState.WithLabelValues(cfg.Name)
	state.Set(stateValue(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= cfg.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			state.Set(stateValue(to))
			logger.Warn("downstream breaker changed state",
				slog.String("downstream", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Breaker{next: next, cb: cb, name: cfg.Name}
}

// Do sends req through the breaker. A refused request fails with a 503
// AppError that matches ErrCircuitOpen.
func (b *Breaker) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := b.next.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, ParseResponseError(resp, b.name)
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		breakerRejections.WithLabelValues(b.name).Inc()
		return nil, apperrors.ServiceUnavailable(b.name+" is unavailable",
			fmt.Errorf("%w: %w", ErrCircuitOpen, err))
	}
	return resp, err
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
