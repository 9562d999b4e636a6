package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Ivanjochie0/luxuryproducts-cart/internal/domain"
	"github.com/Ivanjochie0/luxuryproducts-cart/internal/pricing"
	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/httputil"
	"github.com/Ivanjochie0/luxuryproducts-cart/pkg/validator"
)

// Sessions resolves a session ID to its pricing engine.
type Sessions interface {
	Engine(sessionID string) *pricing.Engine
}

// PromoEvents is told about every promo code that was applied.
type PromoEvents interface {
	PublishPromoApplied(ctx context.Context, sessionID string, snapshot domain.PricingSnapshot)
}

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	sessions Sessions
	events   PromoEvents
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler. events may be nil.
func NewCartHandler(sessions Sessions, events PromoEvents, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		events:   events,
		logger:   logger,
	}
}

func (h *CartHandler) engine(r *http.Request) *pricing.Engine {
	return h.sessions.Engine(sessionIDFromContext(r.Context()))
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, toCart(h.engine(r).View()))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	engine := h.engine(r)
	err := engine.AddItem(domain.LineItem{
		ProductID: req.ProductID,
		Name:      req.Name,
		ImageURL:  req.ImageURL,
		UnitPrice: *req.UnitPrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toCart(engine.View()))
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{index}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	engine := h.engine(r)
	if err := engine.UpdateQuantity(index, *req.Quantity); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toCart(engine.View()))
}

// RemoveItem handles DELETE /api/v1/cart/items/{index}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	engine := h.engine(r)
	if err := engine.RemoveItem(index); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, toCart(engine.View()))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	engine := h.engine(r)
	engine.ClearCart(r.Context())
	httputil.WriteData(w, http.StatusOK, toCart(engine.View()))
}

// ApplyPromoCode handles POST /api/v1/cart/promo
func (h *CartHandler) ApplyPromoCode(w http.ResponseWriter, r *http.Request) {
	var req ApplyPromoRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	engine := h.engine(r)
	snapshot, err := engine.ApplyPromoCode(r.Context(), req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if h.events != nil {
		h.events.PublishPromoApplied(r.Context(), sessionIDFromContext(r.Context()), snapshot)
	}

	httputil.WriteData(w, http.StatusOK, toCart(engine.View()))
}

// SetEmail handles PUT /api/v1/cart/email
func (h *CartHandler) SetEmail(w http.ResponseWriter, r *http.Request) {
	var req SetEmailRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	engine := h.engine(r)
	engine.SetOrderEmail(req.Email)
	httputil.WriteData(w, http.StatusOK, toCart(engine.View()))
}

// Checkout handles POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine(r).PlaceOrder(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, toOrder(order))
}

func indexParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInputCode(domain.CodeInvalidIndex, "item index must be an integer, got "+strconv.Quote(raw))
	}
	return index, nil
}
