// Package payment abstracts the external payment provider behind a small
// interface so the order flow can be exercised without network calls.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the provider-reported payment state of a checkout session.
type Status string

const (
	// StatusPaid means the session's payment was captured.
	StatusPaid Status = "paid"
	// StatusPending means the session is still open and may yet be paid.
	StatusPending Status = "pending"
	// StatusFailed means the session expired or payment cannot complete.
	StatusFailed Status = "failed"
)

// ErrSessionNotFound is returned when the provider has no such session.
var ErrSessionNotFound = errors.New("payment session not found")

// Session is a provider checkout session snapshot.
type Session struct {
	ID            string
	Status        Status
	CustomerEmail string
}

// LineItem describes one purchasable line for session creation.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// CheckoutParams holds the input for creating a checkout session.
type CheckoutParams struct {
	Items      []LineItem
	CustomerID string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a newly created provider session the shopper is
// redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a provider webhook event relevant to order finalization.
type Event struct {
	Type      string
	SessionID string
}

// Provider is the payment vendor client surface used by the order service.
type Provider interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}
