package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_events_published_total",
			Help: "Cart events written to Kafka by event type and result",
		},
		[]string{"event_type", "result"},
	)

	// Writes are synchronous with RequireAll, so latency includes replication.
	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cart_event_publish_duration_seconds",
			Help:    "Time to write one cart event to Kafka",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"event_type"},
	)
)
