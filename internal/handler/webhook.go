package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/mirrorexhibit/storefront/internal/domain/order"
)

// Webhook payloads are small; anything larger is hostile.
const maxWebhookBody = 1 << 16

type webhookAck struct {
	Received bool `json:"received"`
}

// StripeWebhook handles payment provider events. A completed checkout session
// triggers finalization; the finalizer's idempotency makes redeliveries safe.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	event, err := h.events.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	lg := zctx.From(r.Context())
	switch event.Type {
	case "checkout.session.completed":
		if _, err := h.orders.FinalizeSession(r.Context(), event.SessionID); err != nil {
			if errors.Is(err, order.ErrSessionNotFound) {
				// No staged order for this session; acknowledging stops the
				// provider from redelivering forever.
				lg.Warn("Webhook for unknown checkout session",
					zap.String("session_id", event.SessionID),
				)
				break
			}
			// Non-2xx makes the provider redeliver, which retries finalization.
			lg.Error("Webhook finalization failed",
				zap.String("session_id", event.SessionID),
				zap.Error(err),
			)
			respondError(w, http.StatusInternalServerError, "finalization failed")
			return
		}
	default:
		lg.Debug("Ignoring webhook event", zap.String("type", event.Type))
	}

	respond(w, http.StatusOK, webhookAck{Received: true})
}

type shippingWebhookRequest struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

// ShippingWebhook applies carrier tracking updates. Requests are authenticated
// by an HMAC-SHA256 signature of the raw body in X-Webhook-Signature.
func (h *Handler) ShippingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !h.verifyShippingSignature(payload, r.Header.Get("X-Webhook-Signature")) {
		respondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var req shippingWebhookRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.Status == "" {
		respondError(w, http.StatusBadRequest, "orderId and status are required")
		return
	}

	err = h.orders.UpdateShipment(r.Context(), req.OrderID, order.Status(req.Status),
		req.TrackingNumber, req.Carrier)
	if err != nil {
		respondDomainError(r.Context(), w, err)
		return
	}

	respond(w, http.StatusOK, webhookAck{Received: true})
}

func (h *Handler) verifyShippingSignature(payload []byte, sigHeader string) bool {
	sig, err := hex.DecodeString(sigHeader)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.shippingWebhookSecret)
	mac.Write(payload)
	return subtle.ConstantTimeCompare(mac.Sum(nil), sig) == 1
}
