package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPaid, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// Item is a line item of an order. Prices are snapshots taken at checkout;
// they never change after the order is created.
type Item struct {
	ProductID   string          `json:"product_id"`
	VariationID string          `json:"variation_id,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// Order is a finalized customer order.
type Order struct {
	ID                string
	CheckoutSessionID string
	UserID            string
	GuestEmail        string
	Status            Status
	CouponCode        string
	Subtotal          decimal.Decimal
	Tax               decimal.Decimal
	ShippingCost      decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	TrackingNumber    string
	Carrier           string
	PaidAt            *time.Time
	CreatedAt         time.Time
	Items             []Item
}

// Pending is the staging record written before redirecting to the payment
// provider. It is consumed exactly once by the finalizer and never updated
// in place.
type Pending struct {
	CheckoutSessionID string          `json:"checkout_session_id"`
	UserID            string          `json:"user_id,omitempty"`
	GuestToken        string          `json:"guest_token,omitempty"`
	GuestEmail        string          `json:"guest_email,omitempty"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	Total             decimal.Decimal `json:"total"`
	Items             []Item          `json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
}

var (
	// ErrNotFound is returned when no order (or pending order) matches.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateSession is returned by Create when an order already holds
	// the checkout session id. The unique constraint, not a preceding read,
	// is the idempotency arbiter.
	ErrDuplicateSession = errors.New("order already exists for checkout session")
	// ErrInvalidStatus is returned for status values outside the lifecycle.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrTerminalStatus is returned for transitions out of a terminal status.
	ErrTerminalStatus = errors.New("order is in a terminal status")
)

// Repository defines persistence operations for finalized orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID string, items []Item) error
	Delete(ctx context.Context, orderID string) error
	GetBySession(ctx context.Context, sessionID string) (*Order, error)
	GetByID(ctx context.Context, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) error
	UpdateTracking(ctx context.Context, orderID string, status Status, trackingNumber, carrier string) error
}

// PendingRepository defines persistence for the staging table.
type PendingRepository interface {
	Put(ctx context.Context, p *Pending) error
	GetBySession(ctx context.Context, sessionID string) (*Pending, error)
	Delete(ctx context.Context, sessionID string) error
}
