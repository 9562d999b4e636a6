package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/pricing"
)

// --- Request DTOs ---

// AddItemRequest is the JSON body for adding a product to the cart.
type AddItemRequest struct {
	ProductID string           `json:"product_id" validate:"required,max=64"`
	Name      string           `json:"name" validate:"required,min=1,max=500"`
	ImageURL  string           `json:"image_url" validate:"omitempty,url"`
	UnitPrice *decimal.Decimal `json:"unit_price" validate:"required,gte=0"`
	Quantity  int              `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityRequest is the JSON body for changing a line's quantity.
// Zero removes the line; a missing or null quantity is rejected.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// ApplyPromoRequest is the JSON body for applying a promo code.
type ApplyPromoRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// SetEmailRequest is the JSON body for attaching an email to the next order.
type SetEmailRequest struct {
	Email string `json:"email" validate:"max=254"`
}

// --- Response DTOs ---

// ItemResponse is one cart line with amounts as two-decimal strings.
type ItemResponse struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// PricingResponse is the rendered pricing snapshot.
type PricingResponse struct {
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discount_amount"`
	ShippingCost   string `json:"shipping_cost"`
	TotalPrice     string `json:"total_price"`
	AppliedCode    string `json:"applied_code,omitempty"`
	ItemCount      int    `json:"item_count"`
}

// CartResponse is returned by every cart endpoint.
type CartResponse struct {
	Items   []ItemResponse  `json:"items"`
	Pricing PricingResponse `json:"pricing"`
	State   string          `json:"state"`
	Email   string          `json:"email,omitempty"`
}

// OrderResponse is the receipt returned by checkout.
type OrderResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email,omitempty"`
	Items     []ItemResponse  `json:"items"`
	Pricing   PricingResponse `json:"pricing"`
	PromoCode string          `json:"promo_code,omitempty"`
	Currency  string          `json:"currency"`
	PlacedAt  time.Time       `json:"placed_at"`
}

func toItems(items domain.CartContents) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, li := range items {
		out[i] = ItemResponse{
			Index:     i,
			ProductID: li.ProductID,
			Name:      li.Name,
			ImageURL:  li.ImageURL,
			UnitPrice: li.UnitPrice.StringFixed(2),
			Quantity:  li.Quantity,
			Price:     li.Price.StringFixed(2),
		}
	}
	return out
}

func toPricing(s domain.PricingSnapshot) PricingResponse {
	return PricingResponse{
		Subtotal:       s.Subtotal.StringFixed(2),
		DiscountAmount: s.DiscountAmount.StringFixed(2),
		ShippingCost:   s.ShippingCost.StringFixed(2),
		TotalPrice:     s.TotalPrice.StringFixed(2),
		AppliedCode:    s.AppliedCode,
		ItemCount:      s.ItemCount,
	}
}

func toCart(v pricing.View) CartResponse {
	return CartResponse{
		Items:   toItems(v.Items),
		Pricing: toPricing(v.Pricing),
		State:   string(v.State),
		Email:   v.Email,
	}
}

func toOrder(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:        o.ID,
		Email:     o.Email,
		Items:     toItems(o.Items),
		Pricing:   toPricing(o.Snapshot),
		PromoCode: o.PromoCode,
		Currency:  o.Currency,
		PlacedAt:  o.PlacedAt,
	}
}
