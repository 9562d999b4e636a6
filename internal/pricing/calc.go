package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
)

// Compute derives the pricing of items. An empty cart costs nothing, not
// even shipping. Amounts are exact; rounding happens at presentation.
func Compute(items domain.CartContents, fraction, shipping decimal.Decimal) domain.PricingSnapshot {
	if len(items) == 0 {
		return domain.PricingSnapshot{
			Subtotal:       decimal.Zero,
			DiscountAmount: decimal.Zero,
			ShippingCost:   decimal.Zero,
			TotalPrice:     decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.Price)
	}
	discount := subtotal.Mul(fraction)

	return domain.PricingSnapshot{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingCost:   shipping,
		TotalPrice:     subtotal.Add(shipping).Sub(discount),
		ItemCount:      items.ItemCount(),
	}
}
