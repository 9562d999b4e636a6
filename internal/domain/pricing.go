package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutState is the promo-code state of a cart.
type CheckoutState string

const (
	StateIdle        CheckoutState = "idle"
	StateCodeApplied CheckoutState = "code_applied"
)

// PromoCode is a validated discount code. DiscountPercent is within 0..100.
type PromoCode struct {
	Code            string          `json:"code"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// Fraction returns the discount as a fraction of the subtotal.
func (p PromoCode) Fraction() decimal.Decimal {
	return p.DiscountPercent.Div(decimal.NewFromInt(100))
}

// ValidPercent reports whether the discount lies within 0..100.
func (p PromoCode) ValidPercent() bool {
	return !p.DiscountPercent.IsNegative() && p.DiscountPercent.LessThanOrEqual(decimal.NewFromInt(100))
}

// PricingSnapshot is the derived pricing of a cart at one point in time.
type PricingSnapshot struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	AppliedCode    string          `json:"applied_code,omitempty"`
	ItemCount      int             `json:"item_count"`
}

// IsZero reports whether all amounts are zero.
func (s PricingSnapshot) IsZero() bool {
	return s.Subtotal.IsZero() && s.DiscountAmount.IsZero() &&
		s.ShippingCost.IsZero() && s.TotalPrice.IsZero()
}

// Order is the receipt of a successful checkout.
type Order struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id,omitempty"`
	Email     string          `json:"email"`
	Items     CartContents    `json:"items"`
	Snapshot  PricingSnapshot `json:"pricing"`
	PromoCode string          `json:"promo_code,omitempty"`
	Currency  string          `json:"currency"`
	PlacedAt  time.Time       `json:"placed_at"`
}
