// Package handler exposes the storefront checkout API over JSON HTTP.
// Handlers stay thin: decode, delegate to a domain service, encode.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mirrorexhibit/storefront/internal/auth"
	"github.com/mirrorexhibit/storefront/internal/domain/cart"
	"github.com/mirrorexhibit/storefront/internal/domain/coupon"
	"github.com/mirrorexhibit/storefront/internal/domain/order"
	"github.com/mirrorexhibit/storefront/internal/domain/shipping"
	"github.com/mirrorexhibit/storefront/internal/payment"
)

// CouponValidator validates a coupon code against a cart subtotal.
type CouponValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Validation, error)
}

// ShippingResolver quotes shipping options for a destination and cart.
type ShippingResolver interface {
	Resolve(ctx context.Context, addr shipping.Address, items []shipping.RateItem) (*shipping.Quote, error)
}

// OrderService stages checkouts and reconciles them into orders.
type OrderService interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
	FinalizeSession(ctx context.Context, sessionID string) (*order.Order, error)
	GetBySession(ctx context.Context, sessionID string) (*order.Order, bool, error)
	UpdateShipment(ctx context.Context, orderID string, status order.Status, trackingNumber, carrier string) error
}

// CartService consolidates guest carts into user carts.
type CartService interface {
	Consolidate(ctx context.Context, guestToken, userID string) error
}

// EventVerifier checks payment provider webhook signatures.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*payment.Event, error)
}

// Handler holds the domain services behind the HTTP surface.
type Handler struct {
	coupons    CouponValidator
	shipping   ShippingResolver
	orders     OrderService
	carts      CartService
	principals auth.Resolver
	events     EventVerifier

	shippingWebhookSecret []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	coupons CouponValidator,
	shippingResolver ShippingResolver,
	orders OrderService,
	carts CartService,
	principals auth.Resolver,
	events EventVerifier,
	shippingWebhookSecret []byte,
) *Handler {
	return &Handler{
		coupons:               coupons,
		shipping:              shippingResolver,
		orders:                orders,
		carts:                 carts,
		principals:            principals,
		events:                events,
		shippingWebhookSecret: shippingWebhookSecret,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons/validate", h.ValidateCoupon)
	mux.HandleFunc("POST /api/shipping/rates", h.ShippingRates)
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("POST /api/orders/create-from-session", h.CreateFromSession)
	mux.HandleFunc("POST /api/orders/get-by-session", h.GetBySession)
	mux.HandleFunc("POST /api/cart/consolidate", h.ConsolidateCart)
	mux.HandleFunc("POST /api/webhooks/stripe", h.StripeWebhook)
	mux.HandleFunc("POST /api/webhooks/shipping", h.ShippingWebhook)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// respondDomainError maps domain errors onto the HTTP taxonomy. Unrecognized
// errors are logged and surfaced as a generic 500 so upstream details never
// leak to the shopper.
func respondDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		pnfErr *order.ProductNotFoundError
		crErr  *order.CouponRejectedError
	)
	switch {
	case errors.Is(err, cart.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "cart is empty")
	case errors.As(err, &crErr):
		respondError(w, http.StatusBadRequest, crErr.Reason)
	case errors.As(err, &pnfErr):
		respondError(w, http.StatusUnprocessableEntity, pnfErr.Error())
	case errors.Is(err, order.ErrSessionNotFound), errors.Is(err, order.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, shipping.ErrNoSettings):
		respondError(w, http.StatusNotFound, "no shipping options for this destination")
	case errors.Is(err, order.ErrPaymentPending):
		respondError(w, http.StatusPaymentRequired, "payment not completed yet")
	case errors.Is(err, order.ErrPaymentFailed):
		respondError(w, http.StatusPaymentRequired, "payment did not complete")
	case errors.Is(err, order.ErrInvalidStatus), errors.Is(err, order.ErrTerminalStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "authentication required")
	default:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
