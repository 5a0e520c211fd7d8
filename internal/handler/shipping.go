package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mirrorexhibit/storefront/internal/domain/shipping"
)

type addressPayload struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type cartItemPayload struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
}

type shippingRatesRequest struct {
	Address   addressPayload    `json:"address"`
	CartItems []cartItemPayload `json:"cartItems"`
}

type shippingOptionPayload struct {
	Name          string  `json:"name"`
	Carrier       string  `json:"carrier,omitempty"`
	Price         float64 `json:"price"`
	EstimatedDays int     `json:"estimatedDays,omitempty"`
}

type shippingRatesResponse struct {
	Options                  []shippingOptionPayload `json:"options"`
	FreeShippingEligible     bool                    `json:"freeShippingEligible"`
	FreeShippingThreshold    float64                 `json:"freeShippingThreshold"`
	RemainingForFreeShipping float64                 `json:"remainingForFreeShipping"`
}

// ShippingRates quotes shipping options and free-shipping progress for a
// destination and cart.
func (h *Handler) ShippingRates(w http.ResponseWriter, r *http.Request) {
	var req shippingRatesRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address.Country == "" {
		respondError(w, http.StatusBadRequest, "address.country is required")
		return
	}

	items := make([]shipping.RateItem, len(req.CartItems))
	for i, item := range req.CartItems {
		if item.Quantity <= 0 {
			respondError(w, http.StatusBadRequest, "cart item quantity must be positive")
			return
		}
		items[i] = shipping.RateItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: decimal.NewFromFloat(item.UnitPrice),
		}
	}

	quote, err := h.shipping.Resolve(r.Context(), toAddress(req.Address), items)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	options := make([]shippingOptionPayload, len(quote.Options))
	for i, opt := range quote.Options {
		options[i] = shippingOptionPayload{
			Name:          opt.Name,
			Carrier:       opt.Carrier,
			Price:         opt.Price.InexactFloat64(),
			EstimatedDays: opt.EstimatedDays,
		}
	}

	respond(w, http.StatusOK, shippingRatesResponse{
		Options:                  options,
		FreeShippingEligible:     quote.FreeShippingEligible,
		FreeShippingThreshold:    quote.Threshold.InexactFloat64(),
		RemainingForFreeShipping: quote.Remaining.InexactFloat64(),
	})
}

func toAddress(a addressPayload) shipping.Address {
	return shipping.Address{
		Line1:      a.Line1,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}
