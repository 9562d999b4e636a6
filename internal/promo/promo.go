// Package promo defines how the checkout talks to whatever knows about
// discount codes, and how used codes are redeemed.
package promo

import (
	"context"
	"errors"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
)

// ErrInvalidCode is returned by validators for unknown, inactive, expired or
// exhausted codes.
var ErrInvalidCode = errors.New("promo: invalid code")

// Validator resolves a code to its discount.
type Validator interface {
	Validate(ctx context.Context, code string) (*domain.PromoCode, error)
}

// Redeemer marks one use of a code.
type Redeemer interface {
	Redeem(ctx context.Context, code string) error
}

// Service is a promo backend that can both validate and redeem.
type Service interface {
	Validator
	Redeemer
}

// Consumer is what checkout calls once an order with a code is placed. It
// reports nothing back; failures are the consumer's concern.
type Consumer interface {
	Consume(ctx context.Context, code string)
}
