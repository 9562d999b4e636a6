package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/config"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/event"
	handler "github.com/Ivanjochie0/luxuryproducts-cart/internal/handler/http"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/pricing"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo/cache"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo/campaign"
	promopg "github.com/Ivanjochie0/luxuryproducts-cart/internal/promo/postgres"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/session"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/database"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/health"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httpclient"
	pkgkafka "github.com/Ivanjochie0/luxuryproducts-cart/pkg/kafka"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/tracing"
)

const serviceName = "cart"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	consumer       promo.Consumer
	sessions       *session.Manager
	healthHandler  *health.Handler
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger, healthHandler: health.NewHandler()}

	tracerShutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	svc, err := a.promoService(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	consumer, err := promo.NewConsumer(cfg.PromoConsumeMode, svc, cfg.PromoTimeout, logger)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("create promo consumer: %w", err)
	}
	a.consumer = consumer

	// Placed orders and applied codes go to Kafka when it is enabled.
	var (
		listeners   []pricing.CompletionListener
		promoEvents handler.PromoEvents
	)
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

		events := event.NewProducer(a.producer, logger)
		listeners = append(listeners, events.PublishOrderPlaced)
		promoEvents = events

		a.healthHandler.RegisterOptional("kafka", a.producer.Ping)
	}

	a.sessions = session.NewManager(svc, consumer, session.Config{
		ShippingCost: cfg.ShippingCost,
		Currency:     cfg.Currency,
		PromoTimeout: cfg.PromoTimeout,
		IdleTTL:      cfg.SessionIdleTTL,
	}, logger, listeners...)

	router := handler.NewRouter(a.sessions, promoEvents, a.healthHandler, logger, handler.RouterConfig{
		CORSOrigins:              cfg.CORSOrigins,
		PprofCIDRs:               cfg.PprofAllowedCIDRs,
		PromoAttemptsPerMinute:   cfg.PromoAttemptsPerMinute,
		PromoAttemptBurst:        cfg.PromoAttemptBurst,
		PromoIPAttemptsPerMinute: cfg.PromoIPAttemptsPerMinute,
		PromoIPAttemptBurst:      cfg.PromoIPAttemptBurst,
		TrustProxyHeaders:        cfg.TrustProxyHeaders,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("cart pricing configured",
		slog.String("shipping_cost", cfg.ShippingCost.StringFixed(2)),
		slog.String("currency", cfg.Currency),
		slog.String("promo_backend", cfg.PromoBackend),
		slog.String("promo_consume_mode", cfg.PromoConsumeMode),
		slog.Duration("session_idle_ttl", cfg.SessionIdleTTL),
	)

	return a, nil
}

// promoService builds the configured promo backend, wrapped in the Redis
// cache when PROMO_CACHE_TTL is set.
func (a *App) promoService(ctx context.Context) (promo.Service, error) {
	var svc promo.Service

	switch a.cfg.PromoBackend {
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", a.cfg.PostgresHost),
			slog.Int("port", a.cfg.PostgresPort),
			slog.String("database", a.cfg.PostgresDB),
		)

		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, promopg.Migrations(), a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.logger.Info("database migrations completed")

		a.healthHandler.Register("postgres", pool.Ping)
		svc = promopg.NewStore(pool, a.logger)

	default:
		breakerCfg := httpclient.BreakerConfig{
			Name:             "campaign-service",
			HalfOpenRequests: a.cfg.CBMaxRequests,
			Interval:         a.cfg.CBInterval,
			OpenTimeout:      a.cfg.CBTimeout,
			FailureRatio:     a.cfg.CBFailureRatio,
			MinRequests:      a.cfg.CBMinRequests,
		}
		clientCfg := httpclient.DefaultConfig()
		clientCfg.Timeout = min(clientCfg.Timeout, a.cfg.PromoTimeout)
		breaker := httpclient.NewBreaker(httpclient.New(clientCfg), breakerCfg, a.logger)
		a.logger.Info("campaign client initialized",
			slog.String("breaker", breakerCfg.Name),
			slog.String("promo_service_url", a.cfg.PromoServiceURL),
		)
		svc = campaign.NewClient(a.cfg.PromoServiceURL, breaker, a.logger)
	}

	if a.cfg.PromoCacheTTL > 0 {
		rdb, err := database.NewRedisClient(ctx, a.cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.Redis().Addr()),
			slog.Duration("promo_cache_ttl", a.cfg.PromoCacheTTL),
		)

		a.healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		svc = cache.New(svc, rdb, a.cfg.PromoCacheTTL, a.logger)
	}

	return svc, nil
}

// Run starts the HTTP server and the session sweeper and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.sessions.Start(ctx)

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Session sweeper
// 3. Pending promo redemptions
// 4. Tracer, Kafka producer, Redis and PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")
	a.healthHandler.Drain()

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.sessions.Stop()

	if w, ok := a.consumer.(interface{ Wait() }); ok {
		w.Wait()
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases whatever NewApp managed to open.
func (a *App) closeResources() []error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errs
}
