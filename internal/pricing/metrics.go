package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Promo validation outcomes.
const (
	resultApplied    = "applied"
	resultInvalid    = "invalid"
	resultSuperseded = "superseded"
)

var (
	promoValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_promo_validations_total",
			Help: "Promo code applications by outcome",
		},
		[]string{"result"},
	)

	promoValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_promo_validation_duration_seconds",
			Help:    "Time spent waiting for promo code validation",
			Buckets: prometheus.DefBuckets,
		},
	)

	ordersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_orders_placed_total",
			Help: "Orders placed, labelled by whether a promo code was used",
		},
		[]string{"with_promo"},
	)

	checkoutRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_checkout_rejected_total",
			Help: "Checkout attempts rejected because the cart total was not positive",
		},
	)

	orderTotalAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cart_order_total_amount",
			Help:    "Total amount of placed orders in the configured currency",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)
)
