package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/health"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/middleware"
)

// RouterConfig holds the optional parts of the router.
type RouterConfig struct {
	CORSOrigins []string
	PprofCIDRs  []string
	// PromoAttemptsPerMinute limits promo code attempts per session and
	// PromoIPAttemptsPerMinute per client address. Zero disables a limit.
	PromoAttemptsPerMinute   int
	PromoAttemptBurst        int
	PromoIPAttemptsPerMinute int
	PromoIPAttemptBurst      int
	// TrustProxyHeaders keys the address limit on X-Forwarded-For and
	// X-Real-IP instead of the peer address.
	TrustProxyHeaders bool
}

// NewRouter creates a chi router with all cart routes registered.
func NewRouter(
	sessions Sessions,
	events PromoEvents,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.NewHTTPMetrics(prometheus.DefaultRegisterer, "cart").Handler)
	r.Use(middleware.Tracing("github.com/Ivanjochie0/luxuryproducts-cart/internal/handler/http"))
	r.Use(middleware.RequestLogger(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	}

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.MountPprof(r, cfg.PprofCIDRs, logger)

	cartHandler := NewCartHandler(sessions, events, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionFromHeader)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/items", cartHandler.AddItem)
		r.Put("/items/{index}", cartHandler.UpdateItemQuantity)
		r.Delete("/items/{index}", cartHandler.RemoveItem)

		r.With(promoLimit(cfg, logger)...).Post("/promo", cartHandler.ApplyPromoCode)
		r.Put("/email", cartHandler.SetEmail)
		r.Post("/checkout", cartHandler.Checkout)
	})

	return r
}

// promoLimit counts promo attempts per client address and per session.
// Fresh session IDs are free to mint, so the address bucket is what bounds a
// single client cycling through them.
func promoLimit(cfg RouterConfig, logger *slog.Logger) []func(http.Handler) http.Handler {
	var mws []func(http.Handler) http.Handler
	if cfg.PromoIPAttemptsPerMinute > 0 {
		mws = append(mws, middleware.RateLimit(middleware.RateLimitConfig{
			Limit: perMinute(cfg.PromoIPAttemptsPerMinute),
			Burst: max(cfg.PromoIPAttemptBurst, 1),
			Key:   middleware.ByIP(cfg.TrustProxyHeaders),
		}, logger))
	}
	if cfg.PromoAttemptsPerMinute > 0 {
		mws = append(mws, middleware.RateLimit(middleware.RateLimitConfig{
			Limit: perMinute(cfg.PromoAttemptsPerMinute),
			Burst: max(cfg.PromoAttemptBurst, 1),
			Key:   middleware.BySessionID,
		}, logger))
	}
	return mws
}

func perMinute(n int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(n))
}
