// Package session hosts one cart and pricing engine per shopper session.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/cart"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/pricing"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cart_active_sessions",
		Help: "Number of cart sessions held in memory",
	})
	sessionsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_sessions_evicted_total",
		Help: "Total number of cart sessions evicted after being idle",
	})
)

// Config holds the settings applied to every session.
type Config struct {
	ShippingCost decimal.Decimal
	Currency     string
	PromoTimeout time.Duration
	IdleTTL      time.Duration
}

type entry struct {
	engine   *pricing.Engine
	lastSeen time.Time
}

// Manager creates sessions lazily and evicts the ones idle for longer than
// IdleTTL.
type Manager struct {
	validator promo.Validator
	consumer  promo.Consumer
	listeners []pricing.CompletionListener
	cfg       Config
	logger    *slog.Logger
	nowFunc   func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager creates a manager. Every engine it creates reports placed orders
// to listeners.
func NewManager(validator promo.Validator, consumer promo.Consumer, cfg Config, logger *slog.Logger, listeners ...pricing.CompletionListener) *Manager {
	return &Manager{
		validator: validator,
		consumer:  consumer,
		listeners: listeners,
		cfg:       cfg,
		logger:    logger,
		nowFunc:   time.Now,
		sessions:  make(map[string]*entry),
	}
}

// Engine returns the engine of session id, creating it on first use, and
// marks the session as active.
func (m *Manager) Engine(id string) *pricing.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if e, ok := m.sessions[id]; ok {
		e.lastSeen = now
		return e.engine
	}

	engine := pricing.NewEngine(cart.NewState(), m.validator, m.consumer, pricing.Config{
		SessionID:    id,
		ShippingCost: m.cfg.ShippingCost,
		Currency:     m.cfg.Currency,
		PromoTimeout: m.cfg.PromoTimeout,
	}, m.logger)
	for _, l := range m.listeners {
		engine.OnOrderPlaced(l)
	}

	m.sessions[id] = &entry{engine: engine, lastSeen: now}
	activeSessions.Set(float64(len(m.sessions)))
	m.logger.Debug("cart session created", slog.String("session_id", id))
	return engine
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts every session idle for longer than IdleTTL and returns how
// many were evicted. An evicted engine stays subscribed to its own cart, so a
// request still holding it keeps a consistent view until both are collected.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	now := m.nowFunc()
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.cfg.IdleTTL {
			delete(m.sessions, id)
			evicted++
		}
	}
	activeSessions.Set(float64(len(m.sessions)))
	sessionsEvictedTotal.Add(float64(evicted))
	return evicted
}

// Start runs the sweeper until ctx is canceled or Stop is called. The sweep
// interval is half the idle TTL, at least one second.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	interval := m.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Info("idle cart sessions evicted", slog.Int("evicted", n))
				}
			}
		}
	}()
}

// Stop halts the sweeper and waits for it to exit. It is safe to call more
// than once, and without Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel == nil {
			return
		}
		m.cancel()
		<-m.done
	})
}
