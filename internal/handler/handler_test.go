package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorexhibit/storefront/internal/auth"
	"github.com/mirrorexhibit/storefront/internal/domain/coupon"
	"github.com/mirrorexhibit/storefront/internal/domain/order"
	"github.com/mirrorexhibit/storefront/internal/domain/shipping"
	"github.com/mirrorexhibit/storefront/internal/payment"
)

// --- fakes ---

type fakeValidator struct {
	validation coupon.Validation
	err        error
}

func (f *fakeValidator) Validate(context.Context, string, decimal.Decimal) (coupon.Validation, error) {
	return f.validation, f.err
}

type fakeResolver struct {
	quote *shipping.Quote
	err   error
}

func (f *fakeResolver) Resolve(context.Context, shipping.Address, []shipping.RateItem) (*shipping.Quote, error) {
	return f.quote, f.err
}

type fakeOrderService struct {
	checkoutResult *order.CheckoutResult
	checkoutErr    error
	checkoutReq    *order.CheckoutRequest

	finalized    []string
	finalizeOut  *order.Order
	finalizeErr  error
	completed    bool
	shipmentErr  error
	lastShipment shippingWebhookRequest
}

func (f *fakeOrderService) Checkout(_ context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error) {
	f.checkoutReq = &req
	return f.checkoutResult, f.checkoutErr
}

func (f *fakeOrderService) FinalizeSession(_ context.Context, sessionID string) (*order.Order, error) {
	f.finalized = append(f.finalized, sessionID)
	return f.finalizeOut, f.finalizeErr
}

func (f *fakeOrderService) GetBySession(context.Context, string) (*order.Order, bool, error) {
	if f.finalizeErr != nil {
		return nil, false, f.finalizeErr
	}
	return f.finalizeOut, f.completed, nil
}

func (f *fakeOrderService) UpdateShipment(_ context.Context, orderID string, status order.Status, trackingNumber, carrier string) error {
	f.lastShipment = shippingWebhookRequest{
		OrderID:        orderID,
		Status:         string(status),
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
	}
	return f.shipmentErr
}

type fakeCartService struct {
	guestToken string
	userID     string
	err        error
}

func (f *fakeCartService) Consolidate(_ context.Context, guestToken, userID string) error {
	f.guestToken, f.userID = guestToken, userID
	return f.err
}

type fakePrincipals struct {
	principal *auth.Principal
}

func (f *fakePrincipals) Resolve(*http.Request) (*auth.Principal, error) {
	if f.principal == nil {
		return nil, auth.ErrUnauthenticated
	}
	return f.principal, nil
}

type fakeEvents struct {
	event *payment.Event
	err   error
}

func (f *fakeEvents) VerifyEvent([]byte, string) (*payment.Event, error) {
	return f.event, f.err
}

type testDeps struct {
	coupons    *fakeValidator
	shipping   *fakeResolver
	orders     *fakeOrderService
	carts      *fakeCartService
	principals *fakePrincipals
	events     *fakeEvents
}

const testWebhookSecret = "whsec_shipping"

func newTestHandler(d testDeps) *Handler {
	if d.coupons == nil {
		d.coupons = &fakeValidator{}
	}
	if d.shipping == nil {
		d.shipping = &fakeResolver{}
	}
	if d.orders == nil {
		d.orders = &fakeOrderService{}
	}
	if d.carts == nil {
		d.carts = &fakeCartService{}
	}
	if d.principals == nil {
		d.principals = &fakePrincipals{}
	}
	if d.events == nil {
		d.events = &fakeEvents{}
	}
	return NewHandler(d.coupons, d.shipping, d.orders, d.carts,
		d.principals, d.events, []byte(testWebhookSecret))
}

func doJSON(t *testing.T, h http.HandlerFunc, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// --- coupon ---

func TestValidateCoupon(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		maxUses := 100
		h := newTestHandler(testDeps{coupons: &fakeValidator{
			validation: coupon.Validation{
				Valid:    true,
				Discount: decimal.RequireFromString("10.00"),
				Rule: &coupon.Rule{
					Code:         "SAVE10",
					DiscountType: coupon.DiscountPercentage,
					Value:        decimal.NewFromInt(10),
					MinPurchase:  decimal.NewFromInt(50),
					MaxUses:      &maxUses,
				},
			},
		}})

		rec, body := doJSON(t, h.ValidateCoupon, `{"code":"SAVE10","subtotal":100}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["isValid"])
		assert.Equal(t, 10.0, body["discount"])
		assert.Equal(t, "SAVE10", body["coupon"].(map[string]any)["code"])
	})

	t.Run("rejected is a soft 200", func(t *testing.T) {
		h := newTestHandler(testDeps{coupons: &fakeValidator{
			validation: coupon.Validation{Reason: "Minimum purchase of $50.00 required"},
		}})

		rec, body := doJSON(t, h.ValidateCoupon, `{"code":"SAVE10","subtotal":40}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["isValid"])
		assert.Contains(t, body["error"], "$50.00")
	})

	t.Run("missing code", func(t *testing.T) {
		rec, _ := doJSON(t, newTestHandler(testDeps{}).ValidateCoupon, `{"subtotal":100}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, _ := doJSON(t, newTestHandler(testDeps{}).ValidateCoupon, `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// --- shipping ---

func TestShippingRates(t *testing.T) {
	h := newTestHandler(testDeps{shipping: &fakeResolver{quote: &shipping.Quote{
		Options: []shipping.Option{
			{Name: "Standard", Price: decimal.RequireFromString("7.95"), EstimatedDays: 5},
		},
		Threshold: decimal.NewFromInt(100),
		Remaining: decimal.RequireFromString("35.00"),
	}}})

	rec, body := doJSON(t, h.ShippingRates,
		`{"address":{"country":"US"},"cartItems":[{"productId":"p1","quantity":2,"unitPrice":25}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["freeShippingEligible"])
	assert.Equal(t, 100.0, body["freeShippingThreshold"])
	assert.Equal(t, 35.0, body["remainingForFreeShipping"])

	options := body["options"].([]any)
	require.Len(t, options, 1)
	assert.Equal(t, 7.95, options[0].(map[string]any)["price"])
}

func TestShippingRates_MissingCountry(t *testing.T) {
	rec, _ := doJSON(t, newTestHandler(testDeps{}).ShippingRates, `{"address":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- checkout ---

func TestCheckout_Guest(t *testing.T) {
	orders := &fakeOrderService{checkoutResult: &order.CheckoutResult{
		SessionID:   "cs_1",
		CheckoutURL: "https://pay.example/cs_1",
	}}
	h := newTestHandler(testDeps{orders: orders})

	rec, body := doJSON(t, h.Checkout,
		`{"guestToken":"g-1","address":{"country":"US"},"successUrl":"https://s","cancelUrl":"https://c"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cs_1", body["sessionId"])
	assert.Equal(t, "https://pay.example/cs_1", body["checkoutUrl"])

	require.NotNil(t, orders.checkoutReq)
	assert.Equal(t, "g-1", orders.checkoutReq.GuestToken)
	assert.Empty(t, orders.checkoutReq.UserID)
}

func TestCheckout_SignedIn(t *testing.T) {
	orders := &fakeOrderService{checkoutResult: &order.CheckoutResult{SessionID: "cs_1"}}
	h := newTestHandler(testDeps{
		orders:     orders,
		principals: &fakePrincipals{principal: &auth.Principal{ID: "user-1"}},
	})

	rec, _ := doJSON(t, h.Checkout,
		`{"address":{"country":"US"},"successUrl":"https://s","cancelUrl":"https://c"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", orders.checkoutReq.UserID)
}

func TestCheckout_NoIdentity(t *testing.T) {
	rec, _ := doJSON(t, newTestHandler(testDeps{}).Checkout,
		`{"address":{"country":"US"},"successUrl":"https://s","cancelUrl":"https://c"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckout_CouponRejected(t *testing.T) {
	h := newTestHandler(testDeps{orders: &fakeOrderService{
		checkoutErr: &order.CouponRejectedError{Reason: "Coupon has expired"},
	}})

	rec, body := doJSON(t, h.Checkout,
		`{"guestToken":"g-1","address":{"country":"US"},"successUrl":"https://s","cancelUrl":"https://c"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Coupon has expired", body["error"])
}

// --- order finalization ---

func paidOrder() *order.Order {
	paidAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &order.Order{
		ID:                "order-1",
		CheckoutSessionID: "cs_test_1",
		Status:            order.StatusPaid,
		Subtotal:          decimal.NewFromInt(80),
		Total:             decimal.RequireFromString("87.95"),
		PaidAt:            &paidAt,
		CreatedAt:         paidAt,
		Items: []order.Item{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(25), TotalPrice: decimal.NewFromInt(50)},
			{ProductID: "p2", Quantity: 1, UnitPrice: decimal.NewFromInt(30), TotalPrice: decimal.NewFromInt(30)},
		},
	}
}

func TestCreateFromSession(t *testing.T) {
	h := newTestHandler(testDeps{orders: &fakeOrderService{finalizeOut: paidOrder()}})

	rec, body := doJSON(t, h.CreateFromSession, `{"sessionId":"cs_test_1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order created", body["message"])
	assert.Equal(t, "order-1", body["orderId"])

	o := body["order"].(map[string]any)
	assert.Equal(t, "paid", o["status"])
	assert.Len(t, o["items"], 2)
}

func TestCreateFromSession_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"payment pending", order.ErrPaymentPending, http.StatusPaymentRequired},
		{"payment failed", order.ErrPaymentFailed, http.StatusPaymentRequired},
		{"unknown session", order.ErrSessionNotFound, http.StatusNotFound},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(testDeps{orders: &fakeOrderService{finalizeErr: tt.err}})

			rec, body := doJSON(t, h.CreateFromSession, `{"sessionId":"cs_1"}`)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetBySession(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		h := newTestHandler(testDeps{orders: &fakeOrderService{
			finalizeOut: paidOrder(),
			completed:   true,
		}})

		rec, body := doJSON(t, h.GetBySession, `{"sessionId":"cs_test_1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "completed", body["status"])
		assert.NotNil(t, body["order"])
	})

	t.Run("pending", func(t *testing.T) {
		h := newTestHandler(testDeps{orders: &fakeOrderService{}})

		rec, body := doJSON(t, h.GetBySession, `{"sessionId":"cs_test_1"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pending", body["status"])
		assert.Nil(t, body["order"])
	})
}

// --- cart ---

func TestConsolidateCart(t *testing.T) {
	carts := &fakeCartService{}
	h := newTestHandler(testDeps{
		carts:      carts,
		principals: &fakePrincipals{principal: &auth.Principal{ID: "user-1"}},
	})

	rec, _ := doJSON(t, h.ConsolidateCart, `{"guestToken":"g-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "g-1", carts.guestToken)
	assert.Equal(t, "user-1", carts.userID)
}

func TestConsolidateCart_Unauthenticated(t *testing.T) {
	rec, _ := doJSON(t, newTestHandler(testDeps{}).ConsolidateCart, `{"guestToken":"g-1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- webhooks ---

func TestStripeWebhook(t *testing.T) {
	t.Run("completed session finalizes", func(t *testing.T) {
		orders := &fakeOrderService{finalizeOut: paidOrder()}
		h := newTestHandler(testDeps{
			orders: orders,
			events: &fakeEvents{event: &payment.Event{
				Type:      "checkout.session.completed",
				SessionID: "cs_test_1",
			}},
		})

		rec, _ := doJSON(t, h.StripeWebhook, `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"cs_test_1"}, orders.finalized)
	})

	t.Run("bad signature", func(t *testing.T) {
		h := newTestHandler(testDeps{events: &fakeEvents{err: errors.New("bad signature")}})

		rec, _ := doJSON(t, h.StripeWebhook, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session is acknowledged", func(t *testing.T) {
		h := newTestHandler(testDeps{
			orders: &fakeOrderService{finalizeErr: order.ErrSessionNotFound},
			events: &fakeEvents{event: &payment.Event{
				Type:      "checkout.session.completed",
				SessionID: "cs_gone",
			}},
		})

		rec, _ := doJSON(t, h.StripeWebhook, `{}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("finalization failure asks for redelivery", func(t *testing.T) {
		h := newTestHandler(testDeps{
			orders: &fakeOrderService{finalizeErr: errors.New("connection refused")},
			events: &fakeEvents{event: &payment.Event{
				Type:      "checkout.session.completed",
				SessionID: "cs_1",
			}},
		})

		rec, _ := doJSON(t, h.StripeWebhook, `{}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("other events ignored", func(t *testing.T) {
		orders := &fakeOrderService{}
		h := newTestHandler(testDeps{
			orders: orders,
			events: &fakeEvents{event: &payment.Event{Type: "invoice.created"}},
		})

		rec, _ := doJSON(t, h.StripeWebhook, `{}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, orders.finalized)
	})
}

func signShippingWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestShippingWebhook(t *testing.T) {
	body := []byte(`{"orderId":"order-1","status":"shipped","trackingNumber":"TRK123","carrier":"ups"}`)

	t.Run("valid signature updates shipment", func(t *testing.T) {
		orders := &fakeOrderService{}
		h := newTestHandler(testDeps{orders: orders})

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("X-Webhook-Signature", signShippingWebhook(body))
		rec := httptest.NewRecorder()
		h.ShippingWebhook(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "order-1", orders.lastShipment.OrderID)
		assert.Equal(t, "shipped", orders.lastShipment.Status)
		assert.Equal(t, "TRK123", orders.lastShipment.TrackingNumber)
	})

	t.Run("bad signature", func(t *testing.T) {
		h := newTestHandler(testDeps{})

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("X-Webhook-Signature", "deadbeef")
		rec := httptest.NewRecorder()
		h.ShippingWebhook(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("terminal transition rejected", func(t *testing.T) {
		h := newTestHandler(testDeps{orders: &fakeOrderService{
			shipmentErr: order.ErrTerminalStatus,
		}})

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("X-Webhook-Signature", signShippingWebhook(body))
		rec := httptest.NewRecorder()
		h.ShippingWebhook(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
