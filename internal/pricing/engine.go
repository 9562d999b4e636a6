// Package pricing derives cart totals and runs the promo code and checkout
// state machine of one cart.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/cart"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/tracing"
)

// CompletionListener is notified once per successfully placed order.
type CompletionListener func(ctx context.Context, order domain.Order)

// Config holds the per-engine settings.
type Config struct {
	SessionID    string
	ShippingCost decimal.Decimal
	Currency     string
	PromoTimeout time.Duration
}

// Engine prices one cart and owns its promo code and checkout state.
//
// Composite operations are serialized by opMu. mu guards the derived state
// and is the only lock taken by the cart observer, so the engine never holds
// mu while calling into the cart. Promo validation runs with no lock held
// and its result is committed only if no newer promo request, clear or
// checkout happened in the meantime.
type Engine struct {
	cart      *cart.State
	validator promo.Validator
	consumer  promo.Consumer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	opMu sync.Mutex

	mu        sync.RWMutex
	items     domain.CartContents
	fraction  decimal.Decimal
	code      string
	email     string
	snapshot  domain.PricingSnapshot
	promoSeq  uint64
	listeners []CompletionListener

	sub *cart.Subscription
}

// NewEngine creates an engine for c and subscribes it to cart changes.
func NewEngine(c *cart.State, validator promo.Validator, consumer promo.Consumer, cfg Config, logger *slog.Logger) *Engine {
	if cfg.PromoTimeout <= 0 {
		cfg.PromoTimeout = 5 * time.Second
	}
	e := &Engine{
		cart:      c,
		validator: validator,
		consumer:  consumer,
		cfg:       cfg,
		logger:    logger.With(slog.String("session_id", cfg.SessionID)),
		now:       time.Now,
		fraction:  decimal.Zero,
	}
	e.sub = c.Subscribe(e.onCartChanged)
	return e
}

// Close stops observing the cart.
func (e *Engine) Close() {
	e.sub.Unsubscribe()
}

// OnOrderPlaced registers l to receive completion signals.
func (e *Engine) OnOrderPlaced(l CompletionListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) onCartChanged(items domain.CartContents) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = items
	e.recomputeLocked()
}

func (e *Engine) recomputeLocked() {
	s := Compute(e.items, e.fraction, e.cfg.ShippingCost)
	s.AppliedCode = e.code
	e.snapshot = s
}

// Snapshot returns the current pricing.
func (e *Engine) Snapshot() domain.PricingSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

// State reports whether a promo code is applied.
func (e *Engine) State() domain.CheckoutState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.code != "" {
		return domain.StateCodeApplied
	}
	return domain.StateIdle
}

// Items returns the cart contents the current snapshot was computed from.
func (e *Engine) Items() domain.CartContents {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.items.Clone()
}

// View is everything a cart page shows, read at one instant.
type View struct {
	Items   domain.CartContents
	Pricing domain.PricingSnapshot
	State   domain.CheckoutState
	Email   string
}

// View returns the items, pricing, state and email as of the same moment.
func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	state := domain.StateIdle
	if e.code != "" {
		state = domain.StateCodeApplied
	}
	return View{
		Items:   e.items.Clone(),
		Pricing: e.snapshot,
		State:   state,
		Email:   e.email,
	}
}

// Email returns the email attached to the next order.
func (e *Engine) Email() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.email
}

// SetOrderEmail stores the email attached to the next order. It is not
// validated.
func (e *Engine) SetOrderEmail(email string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.email = email
}

// AddItem adds a line to the cart.
func (e *Engine) AddItem(item domain.LineItem) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.cart.AddItem(item)
}

// RemoveItem removes the line at index.
func (e *Engine) RemoveItem(index int) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.cart.RemoveItem(index)
}

// UpdateQuantity changes the quantity of the line at index.
func (e *Engine) UpdateQuantity(index, quantity int) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	return e.cart.UpdateQuantity(index, quantity)
}

// ApplyPromoCode validates code and, when valid, replaces any applied code.
// An invalid code leaves the state untouched and yields INVALID_PROMO_CODE.
// A result that arrives after a newer request, a clear or a checkout is
// discarded with PROMO_SUPERSEDED.
func (e *Engine) ApplyPromoCode(ctx context.Context, code string) (domain.PricingSnapshot, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.PricingSnapshot{}, apperrors.InvalidInput("promo code is required")
	}

	e.mu.Lock()
	e.promoSeq++
	token := e.promoSeq
	e.mu.Unlock()

	p, err := e.validate(ctx, code)

	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if token != e.promoSeq {
		promoValidationsTotal.WithLabelValues(resultSuperseded).Inc()
		e.logger.InfoContext(ctx, "stale promo code result discarded", slog.String("code", code))
		return e.snapshot, domain.ErrPromoSuperseded()
	}

	if err != nil {
		promoValidationsTotal.WithLabelValues(resultInvalid).Inc()
		level := slog.LevelInfo
		if !errors.Is(err, promo.ErrInvalidCode) {
			level = slog.LevelWarn
		}
		e.logger.Log(ctx, level, "promo code rejected",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
		return e.snapshot, domain.ErrInvalidPromoCode()
	}

	e.fraction = p.Fraction()
	e.code = p.Code
	e.recomputeLocked()
	promoValidationsTotal.WithLabelValues(resultApplied).Inc()

	e.logger.InfoContext(ctx, "promo code applied",
		slog.String("code", p.Code),
		slog.String("discount_percent", p.DiscountPercent.String()),
	)
	return e.snapshot, nil
}

// validate asks the validator under the promo timeout and folds every kind
// of failure, including an out-of-range percentage, into one error.
func (e *Engine) validate(ctx context.Context, code string) (p *domain.PromoCode, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.PromoTimeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "pricing", "promo.validate", attribute.String("promo.code", code))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	defer func() { promoValidationDuration.Observe(time.Since(start).Seconds()) }()

	p, err = e.validator.Validate(ctx, code)
	switch {
	case err != nil:
		return nil, err
	case p == nil:
		return nil, promo.ErrInvalidCode
	case !p.ValidPercent():
		return nil, fmt.Errorf("%w: discount percent %s outside 0..100", promo.ErrInvalidCode, p.DiscountPercent)
	}
	if p.Code == "" {
		p.Code = code
	}
	return p, nil
}

// ClearCart empties the cart and drops any applied promo code.
func (e *Engine) ClearCart(ctx context.Context) domain.PricingSnapshot {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.resetPromo()
	e.cart.Clear()

	e.logger.InfoContext(ctx, "cart cleared")
	return e.Snapshot()
}

func (e *Engine) resetPromo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.promoSeq++
	e.fraction = decimal.Zero
	e.code = ""
}

// PlaceOrder checks out the cart. With a total of zero or less nothing
// happens and EMPTY_CART is returned. Otherwise the applied code is handed to
// the consumer, the cart and promo state are reset and every completion
// listener is called exactly once with the receipt. Listeners run after the
// engine is released, so a slow listener does not hold up the session.
func (e *Engine) PlaceOrder(ctx context.Context) (*domain.Order, error) {
	order, err := e.checkout(ctx)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	listeners := append([]CompletionListener(nil), e.listeners...)
	e.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, *order)
	}

	return order, nil
}

func (e *Engine) checkout(ctx context.Context) (*domain.Order, error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	items := e.cart.Items()

	e.mu.Lock()
	e.items = items
	e.recomputeLocked()
	snapshot := e.snapshot
	code := e.code
	email := e.email
	e.mu.Unlock()

	if !snapshot.TotalPrice.IsPositive() {
		checkoutRejectedTotal.Inc()
		e.logger.InfoContext(ctx, "checkout rejected, cart total not positive",
			slog.String("total", snapshot.TotalPrice.StringFixed(2)),
		)
		return nil, domain.ErrEmptyCart()
	}

	if code != "" {
		e.consumer.Consume(ctx, code)
	}

	e.logger.InfoContext(ctx, "placing order", slog.String("email", email))

	order := domain.Order{
		ID:        uuid.New().String(),
		SessionID: e.cfg.SessionID,
		Email:     email,
		Items:     items,
		Snapshot:  snapshot,
		PromoCode: code,
		Currency:  e.cfg.Currency,
		PlacedAt:  e.now().UTC(),
	}

	e.resetPromo()
	e.cart.Clear()

	ordersPlacedTotal.WithLabelValues(strconv.FormatBool(code != "")).Inc()
	orderTotalAmount.Observe(snapshot.TotalPrice.InexactFloat64())

	e.logger.InfoContext(ctx, "order placed",
		slog.String("order_id", order.ID),
		slog.String("total", snapshot.TotalPrice.StringFixed(2)),
		slog.Int("item_count", snapshot.ItemCount),
	)
	return &order, nil
}
