// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httputil"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
	StatusDraining Status = "draining"
)

// Response is the health endpoints' body. It is not wrapped in the API
// envelope so orchestrators can read status directly.
type Response struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status     Status  `json:"status"`
	Critical   bool    `json:"critical"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

type dependency struct {
	check    Checker
	critical bool
}

// Handler runs registered checks on every readiness request, all at once,
// each bounded by the same timeout.
type Handler struct {
	mu       sync.RWMutex
	deps     map[string]dependency
	timeout  time.Duration
	draining atomic.Bool
}

func NewHandler() *Handler {
	return &Handler{deps: make(map[string]dependency), timeout: 3 * time.Second}
}

// Register adds a dependency the service cannot serve without. When it
// fails readiness answers 503.
func (h *Handler) Register(name string, c Checker) { h.add(name, c, true) }

// RegisterOptional adds a dependency the service degrades without. When it
// fails readiness still answers 200, with status degraded.
func (h *Handler) RegisterOptional(name string, c Checker) { h.add(name, c, false) }

func (h *Handler) add(name string, c Checker, critical bool) {
	h.mu.Lock()
	h.deps[name] = dependency{check: c, critical: critical}
	h.mu.Unlock()
}

// Drain makes every later readiness request answer 503 so load balancers
// stop routing here while in-flight requests finish.
func (h *Handler) Drain() { h.draining.Store(true) }

// LivenessHandler answers 200 while the process can serve HTTP at all.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, Response{Status: StatusUp, Timestamp: time.Now().UTC()})
	}
}

// ReadinessHandler answers 200 when every critical dependency passes and
// 503 otherwise or while draining.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.draining.Load() {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, Response{Status: StatusDraining, Timestamp: time.Now().UTC()})
			return
		}

		checks := h.runChecks(r.Context())
		overall := StatusUp
		for _, c := range checks {
			switch {
			case c.Status == StatusUp:
			case c.Critical:
				overall = StatusDown
			case overall == StatusUp:
				overall = StatusDegraded
			}
		}

		code := http.StatusOK
		if overall == StatusDown {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, Response{Status: overall, Timestamp: time.Now().UTC(), Checks: checks})
	}
}

func (h *Handler) runChecks(ctx context.Context) map[string]CheckResult {
	h.mu.RLock()
	deps := make(map[string]dependency, len(h.deps))
	for name, d := range h.deps {
		deps[name] = d
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(deps))
		g       errgroup.Group
	)
	for name, d := range deps {
		g.Go(func() error {
			start := time.Now()
			err := d.check(ctx)
			res := CheckResult{
				Status:     StatusUp,
				Critical:   d.critical,
				DurationMS: float64(time.Since(start).Microseconds()) / 1000,
			}
			if err != nil {
				res.Status, res.Error = StatusDown, err.Error()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
