package promo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Consume modes accepted by NewConsumer.
const (
	ModeAsync = "async"
	ModeSync  = "sync"
)

// FireAndForget redeems codes in the background with its own timeout,
// detached from the caller's context. Wait blocks until in-flight
// redemptions finish and is meant for shutdown and tests.
type FireAndForget struct {
	redeemer Redeemer
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewFireAndForget creates a background consumer.
func NewFireAndForget(r Redeemer, timeout time.Duration, logger *slog.Logger) *FireAndForget {
	return &FireAndForget{redeemer: r, timeout: timeout, logger: logger}
}

// Consume starts the redemption and returns immediately.
func (f *FireAndForget) Consume(ctx context.Context, code string) {
	bg := context.WithoutCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		rctx, cancel := context.WithTimeout(bg, f.timeout)
		defer cancel()

		if err := f.redeemer.Redeem(rctx, code); err != nil {
			f.logger.DebugContext(rctx, "promo code redemption failed",
				slog.String("code", code),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until all started redemptions have returned.
func (f *FireAndForget) Wait() {
	f.wg.Wait()
}

// Blocking redeems inline and logs failures. Checkout still succeeds when
// redemption fails.
type Blocking struct {
	redeemer Redeemer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBlocking creates an inline consumer.
func NewBlocking(r Redeemer, timeout time.Duration, logger *slog.Logger) *Blocking {
	return &Blocking{redeemer: r, timeout: timeout, logger: logger}
}

// Consume redeems code and waits for the result.
func (b *Blocking) Consume(ctx context.Context, code string) {
	rctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.redeemer.Redeem(rctx, code); err != nil {
		b.logger.ErrorContext(ctx, "promo code redemption failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
}

// NewConsumer returns the consumer for mode.
func NewConsumer(mode string, r Redeemer, timeout time.Duration, logger *slog.Logger) (Consumer, error) {
	switch mode {
	case ModeAsync, "":
		return NewFireAndForget(r, timeout, logger), nil
	case ModeSync:
		return NewBlocking(r, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown promo consume mode %q", mode)
	}
}
