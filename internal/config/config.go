package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	pkgconfig "github.com/Ivanjochie0/luxuryproducts-cart/pkg/config"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/database"
)

// Promo backends.
const (
	BackendCampaign = "campaign"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort    int      `env:"CART_HTTP_PORT" envDefault:"8010"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Pricing
	ShippingCost decimal.Decimal `env:"SHIPPING_COST" envDefault:"4.95"`
	Currency     string          `env:"CURRENCY" envDefault:"EUR"`

	// Sessions
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`

	// Promo codes
	PromoBackend     string        `env:"PROMO_BACKEND" envDefault:"campaign"`
	PromoServiceURL  string        `env:"PROMO_SERVICE_URL" envDefault:"http://localhost:8009"`
	PromoTimeout     time.Duration `env:"PROMO_TIMEOUT" envDefault:"5s"`
	PromoConsumeMode string        `env:"PROMO_CONSUME_MODE" envDefault:"async"`
	PromoCacheTTL    time.Duration `env:"PROMO_CACHE_TTL" envDefault:"0s"`

	// Promo code attempts per session and per client address; 0 disables a limit
	PromoAttemptsPerMinute   int  `env:"PROMO_ATTEMPTS_PER_MINUTE" envDefault:"10"`
	PromoAttemptBurst        int  `env:"PROMO_ATTEMPT_BURST" envDefault:"5"`
	PromoIPAttemptsPerMinute int  `env:"PROMO_IP_ATTEMPTS_PER_MINUTE" envDefault:"30"`
	PromoIPAttemptBurst      int  `env:"PROMO_IP_ATTEMPT_BURST" envDefault:"10"`
	TrustProxyHeaders        bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// Circuit breaker for the campaign service
	CBMaxRequests  uint32        `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     time.Duration `env:"CB_INTERVAL" envDefault:"60s"`
	CBTimeout      time.Duration `env:"CB_TIMEOUT" envDefault:"30s"`
	CBFailureRatio float64       `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32        `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Redis, used only when PROMO_CACHE_TTL > 0
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL, used only when PROMO_BACKEND=postgres
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"luxuryproducts"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:""`
	PostgresDB   string `env:"PROMO_DB_NAME" envDefault:"promo_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBSlowQuery       time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.ShippingCost.IsNegative() {
		return fmt.Errorf("SHIPPING_COST must not be negative, got %s", c.ShippingCost)
	}
	if c.Currency == "" {
		return fmt.Errorf("CURRENCY is required")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.SessionIdleTTL)
	}
	if c.PromoTimeout <= 0 {
		return fmt.Errorf("PROMO_TIMEOUT must be positive, got %s", c.PromoTimeout)
	}
	if c.PromoCacheTTL < 0 {
		return fmt.Errorf("PROMO_CACHE_TTL must not be negative, got %s", c.PromoCacheTTL)
	}

	if c.PromoAttemptsPerMinute < 0 || c.PromoAttemptBurst < 0 {
		return fmt.Errorf("PROMO_ATTEMPTS_PER_MINUTE and PROMO_ATTEMPT_BURST must not be negative")
	}
	if c.PromoIPAttemptsPerMinute < 0 || c.PromoIPAttemptBurst < 0 {
		return fmt.Errorf("PROMO_IP_ATTEMPTS_PER_MINUTE and PROMO_IP_ATTEMPT_BURST must not be negative")
	}

	switch c.PromoConsumeMode {
	case promo.ModeAsync, promo.ModeSync:
	default:
		return fmt.Errorf("PROMO_CONSUME_MODE must be %q or %q, got %q", promo.ModeAsync, promo.ModeSync, c.PromoConsumeMode)
	}

	switch c.PromoBackend {
	case BackendCampaign:
		if _, err := url.ParseRequestURI(c.PromoServiceURL); err != nil {
			return fmt.Errorf("invalid PROMO_SERVICE_URL %q: %w", c.PromoServiceURL, err)
		}
	case BackendPostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required")
		}
	default:
		return fmt.Errorf("PROMO_BACKEND must be %q or %q, got %q", BackendCampaign, BackendPostgres, c.PromoBackend)
	}

	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the connection settings for the promo database.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,

		SlowQueryThreshold: c.DBSlowQuery,
	}
}

// Redis returns the connection settings for the promo cache.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:         c.RedisHost,
		Port:         c.RedisPort,
		Password:     c.RedisPassword,
		DB:           c.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
