// Package httpclient is the outbound HTTP stack for calls to other services:
// a pooled client with bounded retries, a circuit breaker on top of it and
// translation of error responses into application errors.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

// IdempotencyKeyHeader marks a non-idempotent request as safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// Doer is satisfied by Client and Breaker so callers can depend on either.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	Retries         int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns defaults for short calls to the promo service. The
// whole budget, retries included, fits inside the default promo timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:         2 * time.Second,
		Retries:         2,
		BackoffBase:     50 * time.Millisecond,
		BackoffMax:      500 * time.Millisecond,
		MaxConnsPerHost: 50,
	}
}

// Client is a pooled http.Client that retries transient failures of
// requests that are safe to repeat.
type Client struct {
	http *http.Client
	cfg  Config
}

// New creates a client with its own transport.
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 2 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   2 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}
	return &Client{
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

// Do sends req. Network errors and 502, 503, 504 and 429 answers are retried
// with jittered exponential backoff, but only for GET, HEAD and OPTIONS or
// requests carrying an Idempotency-Key: redeeming a promo code twice would
// count two uses. When retries run out the last response is returned as is.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	attempts := 1
	if canRetry(req) {
		attempts += c.cfg.Retries
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.http.Do(req)
		last := attempt == attempts

		switch {
		case err != nil && (last || !transient(err)):
			return nil, fmt.Errorf("%s %s: attempt %d: %w", req.Method, req.URL.Redacted(), attempt, err)
		case err == nil && (last || !retryStatus(resp.StatusCode)):
			return resp, nil
		case err == nil:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			_ = resp.Body.Close()
		}

		if err := c.backoff(ctx, attempt); err != nil {
			return nil, err
		}
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewind request body: %w", err)
			}
			req.Body = body
		}
	}
}

// backoff sleeps a random duration up to base*2^(attempt-1), capped at max.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	ceiling := c.cfg.BackoffBase << (attempt - 1)
	if ceiling > c.cfg.BackoffMax || ceiling <= 0 {
		ceiling = c.cfg.BackoffMax
	}
	var wait time.Duration
	if ceiling > 0 {
		wait = rand.N(ceiling) + 1
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func canRetry(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return req.Header.Get(IdempotencyKeyHeader) != ""
}

func retryStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
