// Package campaign validates and redeems promo codes against the remote
// campaign service over HTTP.
package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/promo"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httpclient"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/tracing"
)

const serviceName = "campaign-service"

type promoCodeResponse struct {
	Data *struct {
		Code            string          `json:"code"`
		DiscountPercent decimal.Decimal `json:"discount_percent"`
	} `json:"data"`
}

// Client implements promo.Service on the campaign service API.
type Client struct {
	baseURL string
	doer    httpclient.Doer
	logger  *slog.Logger
}

var _ promo.Service = (*Client)(nil)

// NewClient creates a campaign client. doer is normally an
// *httpclient.Breaker.
func NewClient(baseURL string, doer httpclient.Doer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
		logger:  logger,
	}
}

func (c *Client) codeURL(code string, suffix string) string {
	return c.baseURL + "/api/v1/promo-codes/" + url.PathEscape(code) + suffix
}

// Validate fetches the code. Not found and gone answers mean the code is
// invalid; any other failure is returned as is.
func (c *Client) Validate(ctx context.Context, code string) (p *domain.PromoCode, err error) {
	ctx, span := tracing.StartSpan(ctx, "campaign", "campaign.validate", attribute.String("promo.code", code))
	defer func() { tracing.End(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.codeURL(code, ""), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("validate promo code: %w", err)
	}

	if rejected(resp.StatusCode) {
		drain(resp)
		return nil, promo.ErrInvalidCode
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer drain(resp)

	var body promoCodeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode promo code response: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("decode promo code response: missing data")
	}

	found := body.Data.Code
	if found == "" {
		found = code
	}
	return &domain.PromoCode{Code: found, DiscountPercent: body.Data.DiscountPercent}, nil
}

// Redeem records one use of code.
func (c *Client) Redeem(ctx context.Context, code string) (err error) {
	ctx, span := tracing.StartSpan(ctx, "campaign", "campaign.redeem", attribute.String("promo.code", code))
	defer func() { tracing.End(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.codeURL(code, "/use"), http.NoBody)
	if err != nil {
		return fmt.Errorf("build redeem request: %w", err)
	}

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("redeem promo code: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		drain(resp)
		c.logger.DebugContext(ctx, "promo code redeemed", slog.String("code", code))
		return nil
	case rejected(resp.StatusCode), resp.StatusCode == http.StatusConflict:
		drain(resp)
		return fmt.Errorf("redeem %s: %w", code, promo.ErrInvalidCode)
	default:
		return httpclient.ParseResponseError(resp, serviceName)
	}
}

func rejected(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone || status == http.StatusUnprocessableEntity
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
