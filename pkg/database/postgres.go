package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig describes the promo database and its pool.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	// Zero leaves the pgxpool default in place.
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Statements slower than this are logged. Zero disables the warning.
	SlowQueryThreshold time.Duration
}

// DSN is the postgres:// URL for the config.
func (c *PostgresConfig) DSN() string {
	return (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}).String()
}

// Startup connection attempts and the wait before the second one. The wait
// doubles per attempt with up to a quarter of jitter either way.
const (
	connectAttempts = 3
	connectBackoff  = time.Second
	connectJitter   = 0.25
)

func connectWait(retry int) time.Duration {
	base := connectBackoff << max(retry, 0)
	spread := float64(base) * connectJitter
	return base + time.Duration(spread*(2*rand.Float64()-1)) // #nosec G404
}

func (c *PostgresConfig) poolConfig(logger *slog.Logger) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pc.MinConns = c.MinConns
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	pc.ConnConfig.Tracer = &QueryTracer{SlowThreshold: c.SlowQueryThreshold, Logger: logger}
	return pc, nil
}

// NewPostgresPool opens a traced pool and pings it. A database that is still
// starting gets connectAttempts tries before the error is returned.
func NewPostgresPool(ctx context.Context, cfg *PostgresConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := cfg.poolConfig(logger)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		if attempt == connectAttempts {
			break
		}

		wait := connectWait(attempt - 1)
		logger.Warn("postgres not reachable yet",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, lastErr)
}
