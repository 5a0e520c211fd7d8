package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/mirrorexhibit/storefront/internal/auth"
	"github.com/mirrorexhibit/storefront/internal/domain/order"
)

type checkoutRequest struct {
	GuestToken string         `json:"guestToken,omitempty"`
	GuestEmail string         `json:"guestEmail,omitempty"`
	CouponCode string         `json:"couponCode,omitempty"`
	Address    addressPayload `json:"address"`
	SuccessURL string         `json:"successUrl"`
	CancelURL  string         `json:"cancelUrl"`
}

type checkoutResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// Checkout prices the caller's cart and redirects them to a hosted payment
// session. Signed-in shoppers are identified by their session token; guests
// by the guest cart token.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address.Country == "" {
		respondError(w, http.StatusBadRequest, "address.country is required")
		return
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		respondError(w, http.StatusBadRequest, "successUrl and cancelUrl are required")
		return
	}

	userID := ""
	if principal, err := h.principals.Resolve(r); err == nil {
		userID = principal.ID
	} else if !errors.Is(err, auth.ErrUnauthenticated) {
		respondDomainError(r.Context(), w, err)
		return
	}
	if userID == "" && req.GuestToken == "" {
		respondError(w, http.StatusUnauthorized, "sign in or provide a guest token")
		return
	}

	result, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:     userID,
		GuestToken: req.GuestToken,
		GuestEmail: req.GuestEmail,
		CouponCode: req.CouponCode,
		Address:    toAddress(req.Address),
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respond(w, http.StatusOK, checkoutResponse{
		SessionID:   result.SessionID,
		CheckoutURL: result.CheckoutURL,
	})
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type orderItemPayload struct {
	ProductID   string  `json:"productId"`
	VariationID string  `json:"variationId,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	TotalPrice  float64 `json:"totalPrice"`
}

type orderPayload struct {
	ID             string             `json:"id"`
	Status         string             `json:"status"`
	CouponCode     string             `json:"couponCode,omitempty"`
	Subtotal       float64            `json:"subtotal"`
	Tax            float64            `json:"tax"`
	ShippingCost   float64            `json:"shippingCost"`
	DiscountAmount float64            `json:"discountAmount"`
	Total          float64            `json:"total"`
	TrackingNumber string             `json:"trackingNumber,omitempty"`
	Carrier        string             `json:"carrier,omitempty"`
	PaidAt         *time.Time         `json:"paidAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	Items          []orderItemPayload `json:"items"`
}

type createFromSessionResponse struct {
	Message string       `json:"message"`
	OrderID string       `json:"orderId"`
	Order   orderPayload `json:"order"`
}

// CreateFromSession finalizes the pending order staged for a checkout
// session. Safe to call repeatedly: duplicate calls return the order created
// by the first one.
func (h *Handler) CreateFromSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	o, err := h.orders.FinalizeSession(r.Context(), req.SessionID)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respond(w, http.StatusOK, createFromSessionResponse{
		Message: "Order created",
		OrderID: o.ID,
		Order:   toOrderPayload(o),
	})
}

type getBySessionResponse struct {
	Status string        `json:"status"`
	Order  *orderPayload `json:"order,omitempty"`
}

// GetBySession reports whether the checkout session has produced an order
// yet. A session the provider still holds open is "pending", not an error.
func (h *Handler) GetBySession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	o, completed, err := h.orders.GetBySession(r.Context(), req.SessionID)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}
	if !completed {
		respond(w, http.StatusOK, getBySessionResponse{Status: "pending"})
		return
	}

	payload := toOrderPayload(o)
	respond(w, http.StatusOK, getBySessionResponse{Status: "completed", Order: &payload})
}

func toOrderPayload(o *order.Order) orderPayload {
	items := make([]orderItemPayload, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemPayload{
			ProductID:   item.ProductID,
			VariationID: item.VariationID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.InexactFloat64(),
			TotalPrice:  item.TotalPrice.InexactFloat64(),
		}
	}
	return orderPayload{
		ID:             o.ID,
		Status:         string(o.Status),
		CouponCode:     o.CouponCode,
		Subtotal:       o.Subtotal.InexactFloat64(),
		Tax:            o.Tax.InexactFloat64(),
		ShippingCost:   o.ShippingCost.InexactFloat64(),
		DiscountAmount: o.DiscountAmount.InexactFloat64(),
		Total:          o.Total.InexactFloat64(),
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		PaidAt:         o.PaidAt,
		CreatedAt:      o.CreatedAt,
		Items:          items,
	}
}
