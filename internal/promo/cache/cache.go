// Package cache puts a Redis read-through cache in front of a promo backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
)

const keyPrefix = "promo:code:"

// Service caches successful validations of the wrapped service for ttl.
// Rejections are never cached, so a code that becomes valid is picked up on
// the next request. Redis failures fall through to the wrapped service.
type Service struct {
	next   promo.Service
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

var _ promo.Service = (*Service)(nil)

// New wraps next with a cache.
func New(next promo.Service, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{next: next, client: client, ttl: ttl, logger: logger}
}

func key(code string) string {
	return keyPrefix + code
}

// Validate answers from the cache when possible.
func (s *Service) Validate(ctx context.Context, code string) (*domain.PromoCode, error) {
	if p, err := s.get(ctx, code); err == nil {
		return p, nil
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "promo cache read failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	p, err := s.next.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.set(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "promo cache write failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}
	return p, nil
}

// Redeem redeems through the wrapped service and drops the cached entry,
// whose usage count has changed.
func (s *Service) Redeem(ctx context.Context, code string) error {
	err := s.next.Redeem(ctx, code)

	if delErr := s.client.Del(ctx, key(code)).Err(); delErr != nil {
		s.logger.WarnContext(ctx, "promo cache invalidation failed",
			slog.String("code", code),
			slog.String("error", delErr.Error()),
		)
	}
	return err
}

func (s *Service) get(ctx context.Context, code string) (*domain.PromoCode, error) {
	data, err := s.client.Get(ctx, key(code)).Bytes()
	if err != nil {
		return nil, err
	}

	var p domain.PromoCode
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal cached promo code: %w", err)
	}
	return &p, nil
}

func (s *Service) set(ctx context.Context, p *domain.PromoCode) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal promo code: %w", err)
	}
	return s.client.Set(ctx, key(p.Code), data, s.ttl).Err()
}
