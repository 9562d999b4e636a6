// Package postgres keeps promo codes in a PostgreSQL table.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/database"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/tracing"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for the promo_codes table.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	validateQuery = `
		SELECT code, discount_percent::text
		FROM promo_codes
		WHERE code = $1
		  AND active
		  AND (expires_at IS NULL OR expires_at > NOW())
		  AND (max_uses IS NULL OR used_count < max_uses)`

	redeemQuery = `
		UPDATE promo_codes
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1
		  AND active
		  AND (max_uses IS NULL OR used_count < max_uses)`
)

// Store implements promo.Service on a promo_codes table.
type Store struct {
	db     database.DBTX
	logger *slog.Logger
}

var _ promo.Service = (*Store)(nil)

// NewStore creates a store. Statement level spans come from the pool's
// database.QueryTracer; the store adds one span per promo operation.
func NewStore(db database.DBTX, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Validate returns the code if it is active, unexpired and not used up.
func (s *Store) Validate(ctx context.Context, code string) (p *domain.PromoCode, err error) {
	ctx, span := tracing.StartSpan(ctx, "promo/postgres", "promo.validate", attribute.String("promo.code", code))
	defer func() { tracing.End(span, err) }()

	var (
		found   string
		percent string
	)
	if err := s.db.QueryRow(ctx, validateQuery, code).Scan(&found, &percent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrInvalidCode
		}
		return nil, fmt.Errorf("query promo code: %w", err)
	}

	pct, err := decimal.NewFromString(percent)
	if err != nil {
		return nil, fmt.Errorf("parse discount percent %q: %w", percent, err)
	}

	return &domain.PromoCode{Code: found, DiscountPercent: pct}, nil
}

// Redeem counts one use of code. A code that is inactive or already used up
// yields promo.ErrInvalidCode.
func (s *Store) Redeem(ctx context.Context, code string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "promo/postgres", "promo.redeem", attribute.String("promo.code", code))
	defer func() { tracing.End(span, err) }()

	ct, err := s.db.Exec(ctx, redeemQuery, code)
	if err != nil {
		return fmt.Errorf("redeem promo code: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("redeem %s: %w", code, promo.ErrInvalidCode)
	}
	s.logger.DebugContext(ctx, "promo code redeemed", slog.String("code", code))
	return nil
}
