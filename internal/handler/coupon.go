package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code     string  `json:"code"`
	Subtotal float64 `json:"subtotal"`
}

type couponInfo struct {
	Code          string  `json:"code"`
	DiscountType  string  `json:"discountType"`
	DiscountValue float64 `json:"discountValue"`
	Description   string  `json:"description,omitempty"`
}

type validateCouponResponse struct {
	IsValid  bool        `json:"isValid"`
	Coupon   *couponInfo `json:"coupon,omitempty"`
	Discount *float64    `json:"discount,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// ValidateCoupon checks a coupon code against the caller's cart subtotal.
// Rejected coupons are a 200 with isValid=false; only malformed input is a
// status-level error.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}
	if req.Subtotal < 0 {
		respondError(w, http.StatusBadRequest, "subtotal must not be negative")
		return
	}

	validation, err := h.coupons.Validate(r.Context(), req.Code, decimal.NewFromFloat(req.Subtotal))
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	if !validation.Valid {
		respond(w, http.StatusOK, validateCouponResponse{Error: validation.Reason})
		return
	}

	discount := validation.Discount.InexactFloat64()
	respond(w, http.StatusOK, validateCouponResponse{
		IsValid:  true,
		Discount: &discount,
		Coupon: &couponInfo{
			Code:          validation.Rule.Code,
			DiscountType:  string(validation.Rule.DiscountType),
			DiscountValue: validation.Rule.Value.InexactFloat64(),
			Description:   validation.Rule.Description,
		},
	})
}
