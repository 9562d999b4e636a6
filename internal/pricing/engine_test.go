package pricing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/cart"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

// --- Mocks ---

type mockValidator struct {
	mock.Mock
}

func (m *mockValidator) Validate(ctx context.Context, code string) (*domain.PromoCode, error) {
	args := m.Called(ctx, code)
	p, _ := args.Get(0).(*domain.PromoCode)
	return p, args.Error(1)
}

type mockConsumer struct {
	mock.Mock
}

func (m *mockConsumer) Consume(ctx context.Context, code string) {
	m.Called(ctx, code)
}

// gatedValidator blocks each code until released, so tests can interleave
// promo requests deterministically.
type gatedValidator struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	percent map[string]string
}

func newGatedValidator() *gatedValidator {
	return &gatedValidator{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 10),
		percent: make(map[string]string),
	}
}

func (g *gatedValidator) add(code, percent string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[code] = ch
	g.percent[code] = percent
	return ch
}

func (g *gatedValidator) Validate(ctx context.Context, code string) (*domain.PromoCode, error) {
	g.mu.Lock()
	gate := g.gates[code]
	pct := g.percent[code]
	g.mu.Unlock()

	g.started <- code
	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &domain.PromoCode{Code: code, DiscountPercent: decimal.RequireFromString(pct)}, nil
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(id, price string) domain.LineItem {
	return domain.LineItem{ProductID: id, Name: id, UnitPrice: dec(price), Quantity: 1}
}

func newTestEngine(t *testing.T, v promo.Validator, c promo.Consumer) *Engine {
	t.Helper()
	e := NewEngine(cart.NewState(), v, c, Config{
		SessionID:    "sess-test",
		ShippingCost: dec("4.95"),
		Currency:     "EUR",
		PromoTimeout: time.Second,
	}, discardLogger())
	t.Cleanup(e.Close)
	return e
}

func assertSnapshot(t *testing.T, s domain.PricingSnapshot, subtotal, discount, total string) {
	t.Helper()
	assert.True(t, s.Subtotal.Equal(dec(subtotal)), "subtotal: got %s want %s", s.Subtotal, subtotal)
	assert.True(t, s.DiscountAmount.Equal(dec(discount)), "discount: got %s want %s", s.DiscountAmount, discount)
	assert.True(t, s.TotalPrice.Equal(dec(total)), "total: got %s want %s", s.TotalPrice, total)
}

func tenPercent(v *mockValidator, code string) {
	v.On("Validate", mock.Anything, code).
		Return(&domain.PromoCode{Code: code, DiscountPercent: dec("10")}, nil)
}

// --- Tests ---

func TestEngine_StartsEmpty(t *testing.T) {
	e := newTestEngine(t, &mockValidator{}, &mockConsumer{})

	s := e.Snapshot()
	assertSnapshot(t, s, "0", "0", "0")
	assert.True(t, s.ShippingCost.IsZero())
	assert.Equal(t, domain.StateIdle, e.State())
}

func TestEngine_CheckoutScenario(t *testing.T) {
	v := &mockValidator{}
	tenPercent(v, "TEN")
	e := newTestEngine(t, v, &mockConsumer{})
	ctx := context.Background()

	require.NoError(t, e.AddItem(line("a", "10.00")))
	require.NoError(t, e.AddItem(line("b", "15.00")))
	assertSnapshot(t, e.Snapshot(), "25.00", "0", "29.95")

	s, err := e.ApplyPromoCode(ctx, "TEN")
	require.NoError(t, err)
	assertSnapshot(t, s, "25.00", "2.50", "27.45")
	assert.Equal(t, "TEN", s.AppliedCode)
	assert.Equal(t, domain.StateCodeApplied, e.State())

	require.NoError(t, e.RemoveItem(1))
	assertSnapshot(t, e.Snapshot(), "10.00", "1.00", "13.95")

	s = e.ClearCart(ctx)
	assertSnapshot(t, s, "0", "0", "0")
	assert.Empty(t, s.AppliedCode)
	assert.Equal(t, domain.StateIdle, e.State())

	_, err = e.PlaceOrder(ctx)
	assert.True(t, apperrors.HasCode(err, domain.CodeEmptyCart))
}

func TestEngine_RecomputesOnDirectCartMutation(t *testing.T) {
	c := cart.NewState()
	e := NewEngine(c, &mockValidator{}, &mockConsumer{}, Config{ShippingCost: dec("4.95")}, discardLogger())
	defer e.Close()

	require.NoError(t, c.AddItem(domain.LineItem{ProductID: "x", UnitPrice: dec("3.00"), Quantity: 2}))
	assertSnapshot(t, e.Snapshot(), "6.00", "0", "10.95")
	assert.Equal(t, 2, e.Snapshot().ItemCount)

	require.NoError(t, c.UpdateQuantity(0, 5))
	assertSnapshot(t, e.Snapshot(), "15.00", "0", "19.95")
}

func TestEngine_View(t *testing.T) {
	v := &mockValidator{}
	tenPercent(v, "TEN")
	e := newTestEngine(t, v, &mockConsumer{})

	require.NoError(t, e.AddItem(line("a", "10.00")))
	_, err := e.ApplyPromoCode(context.Background(), "TEN")
	require.NoError(t, err)
	e.SetOrderEmail("shopper@example.com")

	view := e.View()
	require.Len(t, view.Items, 1)
	assert.Equal(t, "a", view.Items[0].ProductID)
	assertSnapshot(t, view.Pricing, "10.00", "1.00", "13.95")
	assert.Equal(t, domain.StateCodeApplied, view.State)
	assert.Equal(t, "shopper@example.com", view.Email)

	view.Items[0].Name = "changed"
	assert.Equal(t, "a", e.Items()[0].Name)
}

func TestEngine_ApplyPromoCode_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		setup func(v *mockValidator)
	}{
		{"unknown code", func(v *mockValidator) {
			v.On("Validate", mock.Anything, "NOPE").Return(nil, promo.ErrInvalidCode)
		}},
		{"backend error", func(v *mockValidator) {
			v.On("Validate", mock.Anything, "NOPE").Return(nil, errors.New("connection refused"))
		}},
		{"nil result", func(v *mockValidator) {
			v.On("Validate", mock.Anything, "NOPE").Return(nil, nil)
		}},
		{"percent above 100", func(v *mockValidator) {
			v.On("Validate", mock.Anything, "NOPE").
				Return(&domain.PromoCode{Code: "NOPE", DiscountPercent: dec("150")}, nil)
		}},
		{"negative percent", func(v *mockValidator) {
			v.On("Validate", mock.Anything, "NOPE").
				Return(&domain.PromoCode{Code: "NOPE", DiscountPercent: dec("-5")}, nil)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := &mockValidator{}
			tenPercent(v, "TEN")
			tc.setup(v)
			e := newTestEngine(t, v, &mockConsumer{})
			ctx := context.Background()

			require.NoError(t, e.AddItem(line("a", "10.00")))
			_, err := e.ApplyPromoCode(ctx, "TEN")
			require.NoError(t, err)
			before := e.Snapshot()

			_, err = e.ApplyPromoCode(ctx, "NOPE")
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, domain.CodeInvalidPromoCode))
			assert.Equal(t, before, e.Snapshot())
			assert.Equal(t, "TEN", e.Snapshot().AppliedCode)
		})
	}
}

func TestEngine_ApplyPromoCode_EmptyCode(t *testing.T) {
	v := &mockValidator{}
	e := newTestEngine(t, v, &mockConsumer{})

	_, err := e.ApplyPromoCode(context.Background(), "   ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	v.AssertNotCalled(t, "Validate", mock.Anything, mock.Anything)
}

func TestEngine_ApplyPromoCode_Timeout(t *testing.T) {
	g := newGatedValidator()
	g.add("SLOW", "10")

	e := NewEngine(cart.NewState(), g, &mockConsumer{}, Config{
		ShippingCost: dec("4.95"),
		PromoTimeout: 20 * time.Millisecond,
	}, discardLogger())
	defer e.Close()

	_, err := e.ApplyPromoCode(context.Background(), "SLOW")
	assert.True(t, apperrors.HasCode(err, domain.CodeInvalidPromoCode))
	assert.Equal(t, domain.StateIdle, e.State())
}

func TestEngine_ApplyPromoCode_ReplacesPreviousCode(t *testing.T) {
	v := &mockValidator{}
	tenPercent(v, "TEN")
	v.On("Validate", mock.Anything, "HALF").
		Return(&domain.PromoCode{Code: "HALF", DiscountPercent: dec("50")}, nil)
	e := newTestEngine(t, v, &mockConsumer{})
	ctx := context.Background()

	require.NoError(t, e.AddItem(line("a", "20.00")))
	_, err := e.ApplyPromoCode(ctx, "TEN")
	require.NoError(t, err)
	s, err := e.ApplyPromoCode(ctx, "HALF")
	require.NoError(t, err)

	assertSnapshot(t, s, "20.00", "10.00", "14.95")
	assert.Equal(t, "HALF", s.AppliedCode)
}

func TestEngine_ApplyPromoCode_SupersededByNewerRequest(t *testing.T) {
	g := newGatedValidator()
	slow := g.add("SLOW", "50")
	fast := g.add("FAST", "10")
	e := newTestEngine(t, g, &mockConsumer{})
	ctx := context.Background()
	require.NoError(t, e.AddItem(line("a", "10.00")))

	slowErr := make(chan error, 1)
	go func() {
		_, err := e.ApplyPromoCode(ctx, "SLOW")
		slowErr <- err
	}()
	require.Equal(t, "SLOW", <-g.started)

	fastErr := make(chan error, 1)
	go func() {
		_, err := e.ApplyPromoCode(ctx, "FAST")
		fastErr <- err
	}()
	require.Equal(t, "FAST", <-g.started)

	close(fast)
	require.NoError(t, <-fastErr)

	close(slow)
	err := <-slowErr
	assert.True(t, apperrors.HasCode(err, domain.CodePromoSuperseded))

	s := e.Snapshot()
	assert.Equal(t, "FAST", s.AppliedCode)
	assertSnapshot(t, s, "10.00", "1.00", "13.95")
}

func TestEngine_ApplyPromoCode_SupersededByClear(t *testing.T) {
	g := newGatedValidator()
	gate := g.add("LATE", "10")
	e := newTestEngine(t, g, &mockConsumer{})
	ctx := context.Background()
	require.NoError(t, e.AddItem(line("a", "10.00")))

	errCh := make(chan error, 1)
	go func() {
		_, err := e.ApplyPromoCode(ctx, "LATE")
		errCh <- err
	}()
	<-g.started

	e.ClearCart(ctx)
	close(gate)

	assert.True(t, apperrors.HasCode(<-errCh, domain.CodePromoSuperseded))
	assert.Equal(t, domain.StateIdle, e.State())
	assertSnapshot(t, e.Snapshot(), "0", "0", "0")
}

func TestEngine_PlaceOrder_Success(t *testing.T) {
	v := &mockValidator{}
	tenPercent(v, "TEN")
	c := &mockConsumer{}
	c.On("Consume", mock.Anything, "TEN").Return().Once()
	e := newTestEngine(t, v, c)
	ctx := context.Background()

	var signals []domain.Order
	e.OnOrderPlaced(func(_ context.Context, o domain.Order) {
		signals = append(signals, o)
	})

	require.NoError(t, e.AddItem(line("a", "10.00")))
	require.NoError(t, e.AddItem(line("b", "15.00")))
	e.SetOrderEmail("jane@example.com")
	_, err := e.ApplyPromoCode(ctx, "TEN")
	require.NoError(t, err)

	order, err := e.PlaceOrder(ctx)
	require.NoError(t, err)

	c.AssertExpectations(t)
	require.Len(t, signals, 1)
	assert.Equal(t, order.ID, signals[0].ID)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "jane@example.com", order.Email)
	assert.Equal(t, "TEN", order.PromoCode)
	assert.Equal(t, "sess-test", order.SessionID)
	assert.Equal(t, "EUR", order.Currency)
	assert.Len(t, order.Items, 2)
	assertSnapshot(t, order.Snapshot, "25.00", "2.50", "27.45")

	assertSnapshot(t, e.Snapshot(), "0", "0", "0")
	assert.Empty(t, e.Items())
	assert.Equal(t, domain.StateIdle, e.State())
	assert.Equal(t, "jane@example.com", e.Email(), "email survives checkout")
}

func TestEngine_PlaceOrder_SlowListenerDoesNotBlockSession(t *testing.T) {
	e := newTestEngine(t, &mockValidator{}, &mockConsumer{})
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	e.OnOrderPlaced(func(context.Context, domain.Order) {
		close(entered)
		<-release
	})

	require.NoError(t, e.AddItem(line("a", "10.00")))

	placed := make(chan error, 1)
	go func() {
		_, err := e.PlaceOrder(ctx)
		placed <- err
	}()
	<-entered

	added := make(chan error, 1)
	go func() { added <- e.AddItem(line("b", "20.00")) }()

	select {
	case err := <-added:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("cart mutation waited for the completion listener")
	}
	assertSnapshot(t, e.Snapshot(), "20.00", "0", "24.95")

	close(release)
	require.NoError(t, <-placed)
}

func TestEngine_PlaceOrder_WithoutCodeDoesNotConsume(t *testing.T) {
	c := &mockConsumer{}
	e := newTestEngine(t, &mockValidator{}, c)

	calls := 0
	e.OnOrderPlaced(func(context.Context, domain.Order) { calls++ })

	require.NoError(t, e.AddItem(line("a", "1.00")))
	order, err := e.PlaceOrder(context.Background())
	require.NoError(t, err)

	assert.Empty(t, order.PromoCode)
	assert.Equal(t, 1, calls)
	c.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestEngine_PlaceOrder_EmptyCartChangesNothing(t *testing.T) {
	c := &mockConsumer{}
	e := newTestEngine(t, &mockValidator{}, c)
	e.SetOrderEmail("a@b.c")

	calls := 0
	e.OnOrderPlaced(func(context.Context, domain.Order) { calls++ })

	order, err := e.PlaceOrder(context.Background())
	assert.Nil(t, order)
	assert.True(t, apperrors.HasCode(err, domain.CodeEmptyCart))
	assert.Equal(t, "add products to your cart first", err.(*apperrors.AppError).Message)
	assert.Equal(t, 0, calls)
	c.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything)
}

func TestEngine_PlaceOrder_FreeItemsRejected(t *testing.T) {
	e := NewEngine(cart.NewState(), &mockValidator{}, &mockConsumer{}, Config{ShippingCost: decimal.Zero}, discardLogger())
	defer e.Close()

	require.NoError(t, e.AddItem(line("gift", "0.00")))
	_, err := e.PlaceOrder(context.Background())

	assert.True(t, apperrors.HasCode(err, domain.CodeEmptyCart))
	assert.Len(t, e.Items(), 1)
}

func TestEngine_PlaceOrder_FullDiscountStillPaysShipping(t *testing.T) {
	v := &mockValidator{}
	v.On("Validate", mock.Anything, "FREE").
		Return(&domain.PromoCode{Code: "FREE", DiscountPercent: dec("100")}, nil)
	c := &mockConsumer{}
	c.On("Consume", mock.Anything, "FREE").Return()
	e := newTestEngine(t, v, c)
	ctx := context.Background()

	require.NoError(t, e.AddItem(line("a", "10.00")))
	s, err := e.ApplyPromoCode(ctx, "FREE")
	require.NoError(t, err)
	assertSnapshot(t, s, "10.00", "10.00", "4.95")

	order, err := e.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.True(t, order.Snapshot.TotalPrice.Equal(dec("4.95")))
}

func TestEngine_ClearIsIdempotent(t *testing.T) {
	e := newTestEngine(t, &mockValidator{}, &mockConsumer{})
	ctx := context.Background()

	first := e.ClearCart(ctx)
	second := e.ClearCart(ctx)

	assert.Equal(t, first, second)
	assertSnapshot(t, second, "0", "0", "0")
}

func TestEngine_ConcurrentUse(t *testing.T) {
	v := &mockValidator{}
	tenPercent(v, "TEN")
	c := &mockConsumer{}
	c.On("Consume", mock.Anything, mock.Anything).Return().Maybe()
	e := newTestEngine(t, v, c)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = e.AddItem(line(string(rune('a'+i)), "1.00"))
			_, _ = e.ApplyPromoCode(ctx, "TEN")
			_ = e.Snapshot()
			if i%5 == 0 {
				_, _ = e.PlaceOrder(ctx)
			}
		}(i)
	}
	wg.Wait()

	sum := decimal.Zero
	for _, li := range e.Items() {
		sum = sum.Add(li.Price)
	}
	assert.True(t, e.Snapshot().Subtotal.Equal(sum))
}
