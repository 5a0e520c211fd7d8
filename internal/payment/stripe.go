package payment

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

var _ Provider = (*Stripe)(nil)

// Stripe implements Provider on top of the Stripe checkout session API.
type Stripe struct {
	api           *client.API
	webhookSecret string
	currency      string
}

// NewStripe creates a Stripe provider with an explicitly constructed client;
// nothing is stored in package-level state.
func NewStripe(secretKey, webhookSecret, currency string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	if currency == "" {
		currency = "usd"
	}
	return &Stripe{
		api:           api,
		webhookSecret: webhookSecret,
		currency:      currency,
	}
}

// CreateCheckout creates a hosted checkout session for the given lines.
// Amounts are converted to minor units (cents).
func (s *Stripe) CreateCheckout(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, len(p.Items))
	for i, item := range p.Items {
		lineItems[i] = &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(minorUnits(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(item.Name),
					Metadata: map[string]string{"product_id": item.ProductID},
				},
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.ClientReferenceID = stripe.String(p.CustomerID)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create stripe checkout session")
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetSession fetches the session and maps Stripe's payment_status/status pair
// onto the provider-neutral Status.
func (s *Stripe) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "get stripe checkout session")
	}

	out := &Session{ID: sess.ID, Status: mapStripeStatus(sess)}
	if sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	return out, nil
}

// VerifyEvent checks the webhook signature and extracts the checkout session
// id for session-scoped events.
func (s *Stripe) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return nil, errors.Wrap(err, "verify stripe webhook signature")
	}

	out := &Event{Type: string(event.Type)}
	switch event.Type {
	case "checkout.session.completed", "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, errors.Wrap(err, "decode checkout session payload")
		}
		out.SessionID = sess.ID
	}
	return out, nil
}

func mapStripeStatus(sess *stripe.CheckoutSession) Status {
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return StatusPaid
	}
	if sess.Status == stripe.CheckoutSessionStatusExpired {
		return StatusFailed
	}
	return StatusPending
}

// minorUnits converts a decimal amount to integer cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
