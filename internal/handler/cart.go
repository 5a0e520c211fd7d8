package handler

import (
	"net/http"
)

type consolidateCartRequest struct {
	GuestToken string `json:"guestToken"`
}

type consolidateCartResponse struct {
	Message string `json:"message"`
}

// ConsolidateCart merges the caller's guest cart into their user cart after
// sign-in. Requires an authenticated principal.
func (h *Handler) ConsolidateCart(w http.ResponseWriter, r *http.Request) {
	principal, err := h.principals.Resolve(r)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	var req consolidateCartRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GuestToken == "" {
		respondError(w, http.StatusBadRequest, "guestToken is required")
		return
	}

	if err := h.carts.Consolidate(r.Context(), req.GuestToken, principal.ID); err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respond(w, http.StatusOK, consolidateCartResponse{Message: "Cart consolidated"})
}
