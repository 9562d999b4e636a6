package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	pkgkafka "github.com/Ivanjochie0/luxuryproducts-cart/pkg/kafka"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/logger"
)

// Kafka topics for checkout domain events.
const (
	TopicOrderPlaced  = "luxuryproducts.checkout.order_placed"
	TopicPromoApplied = "luxuryproducts.checkout.promo_applied"
)

// Event types, also used as the metric label on published events.
const (
	TypeOrderPlaced  = "order_placed"
	TypePromoApplied = "promo_applied"
)

const (
	AggregateTypeOrder   = "order"
	AggregateTypeSession = "cart_session"
	SourceCartService    = "cart-service"
)

// Publisher is the part of pkg/kafka.Producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// OrderPlacedData is the payload of an order_placed event.
type OrderPlacedData struct {
	OrderID        string          `json:"order_id"`
	SessionID      string          `json:"session_id"`
	Email          string          `json:"email,omitempty"`
	Items          []OrderItemData `json:"items"`
	ItemCount      int             `json:"item_count"`
	Subtotal       string          `json:"subtotal"`
	DiscountAmount string          `json:"discount_amount"`
	ShippingCost   string          `json:"shipping_cost"`
	TotalPrice     string          `json:"total_price"`
	PromoCode      string          `json:"promo_code,omitempty"`
	Currency       string          `json:"currency"`
	PlacedAt       time.Time       `json:"placed_at"`
}

// OrderItemData is one line within an order_placed event.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// PromoAppliedData is the payload of a promo_applied event.
type PromoAppliedData struct {
	SessionID      string `json:"session_id"`
	Code           string `json:"code"`
	DiscountAmount string `json:"discount_amount"`
	TotalPrice     string `json:"total_price"`
}

// Producer publishes checkout events. Failures are logged and never reach
// the shopper: the order is already placed when the event goes out.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishOrderPlaced publishes an order_placed event for order. Its signature
// matches pricing.CompletionListener.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order domain.Order) {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		}
	}

	data := OrderPlacedData{
		OrderID:        order.ID,
		SessionID:      order.SessionID,
		Email:          order.Email,
		Items:          items,
		ItemCount:      order.Snapshot.ItemCount,
		Subtotal:       order.Snapshot.Subtotal.StringFixed(2),
		DiscountAmount: order.Snapshot.DiscountAmount.StringFixed(2),
		ShippingCost:   order.Snapshot.ShippingCost.StringFixed(2),
		TotalPrice:     order.Snapshot.TotalPrice.StringFixed(2),
		PromoCode:      order.PromoCode,
		Currency:       order.Currency,
		PlacedAt:       order.PlacedAt,
	}

	agg := pkgkafka.Aggregate{Type: AggregateTypeOrder, ID: order.ID}
	if err := p.publish(ctx, TopicOrderPlaced, TypeOrderPlaced, agg, order.SessionID, data); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish order_placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "published order_placed event",
		slog.String("order_id", order.ID),
		slog.Int("item_count", order.Snapshot.ItemCount),
	)
}

// PublishPromoApplied publishes a promo_applied event for a session.
func (p *Producer) PublishPromoApplied(ctx context.Context, sessionID string, snapshot domain.PricingSnapshot) {
	data := PromoAppliedData{
		SessionID:      sessionID,
		Code:           snapshot.AppliedCode,
		DiscountAmount: snapshot.DiscountAmount.StringFixed(2),
		TotalPrice:     snapshot.TotalPrice.StringFixed(2),
	}

	agg := pkgkafka.Aggregate{Type: AggregateTypeSession, ID: sessionID}
	if err := p.publish(ctx, TopicPromoApplied, TypePromoApplied, agg, sessionID, data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish promo_applied event",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Producer) publish(ctx context.Context, topic, eventType string, agg pkgkafka.Aggregate, sessionID string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, agg, sessionID, SourceCartService, data)
	if err != nil {
		return err
	}
	event.CorrelationID = logger.CorrelationIDFromContext(ctx)

	return p.publisher.Publish(ctx, topic, event)
}
