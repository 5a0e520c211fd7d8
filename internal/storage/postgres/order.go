package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirrorexhibit/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, checkout_session_id, user_id, guest_email,
		status, coupon_code, subtotal, tax, shipping_cost, discount_amount,
		total_amount, tracking_number, carrier, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, variation_id,
		quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	getOrderSQL = `SELECT id, checkout_session_id, user_id, guest_email, status,
		coupon_code, subtotal, tax, shipping_cost, discount_amount, total_amount,
		tracking_number, carrier, paid_at, created_at
		FROM orders`

	getOrderItemsSQL = `SELECT product_id, variation_id, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1`

	updateOrderTrackingSQL = `UPDATE orders SET status = $2, tracking_number = $3,
		carrier = $4, updated_at = now()
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order row. The UNIQUE constraint on checkout_session_id
// arbitrates concurrent finalizations; a violation surfaces as
// order.ErrDuplicateSession.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.CheckoutSessionID, nullable(o.UserID), nullable(o.GuestEmail),
		string(o.Status), nullable(o.CouponCode), o.Subtotal, o.Tax,
		o.ShippingCost, o.DiscountAmount, o.Total,
		o.TrackingNumber, o.Carrier, o.PaidAt, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateSession
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// InsertItems writes the order's line items in a single batch.
func (r *OrderRepository) InsertItems(ctx context.Context, orderID string, items []order.Item) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(insertOrderItemSQL, orderID, item.ProductID,
			nullable(item.VariationID), item.Quantity, item.UnitPrice, item.TotalPrice)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close() //nolint:errcheck // close errors surface via Exec

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("inserting order items for %q: %w", orderID, err)
		}
	}
	return nil
}

// Delete removes the order and, via cascade, its items.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderSQL, orderID); err != nil {
		return fmt.Errorf("deleting order %q: %w", orderID, err)
	}
	return nil
}

// GetBySession fetches the order holding the given checkout session id.
// Returns order.ErrNotFound when none exists.
func (r *OrderRepository) GetBySession(ctx context.Context, sessionID string) (*order.Order, error) {
	return r.getOrder(ctx, getOrderSQL+" WHERE checkout_session_id = $1", sessionID)
}

// GetByID fetches an order by its id. Returns order.ErrNotFound when none
// exists.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.getOrder(ctx, getOrderSQL+" WHERE id = $1", orderID)
}

// UpdateStatus sets the order's status. Returns order.ErrNotFound when the
// order does not exist.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, orderID, string(status))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateTracking sets the order's status together with its shipment tracking
// details. Returns order.ErrNotFound when the order does not exist.
func (r *OrderRepository) UpdateTracking(ctx context.Context, orderID string, status order.Status, trackingNumber, carrier string) error {
	tag, err := r.pool.Exec(ctx, updateOrderTrackingSQL, orderID, string(status), trackingNumber, carrier)
	if err != nil {
		return fmt.Errorf("updating order %q tracking: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) getOrder(ctx context.Context, query, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	itemRows, err := r.pool.Query(ctx, getOrderItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("getting order items for %q: %w", o.ID, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("scanning order items for %q: %w", o.ID, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		userID     *string
		guestEmail *string
		couponCode *string
		status     string
	)
	err := row.Scan(
		&o.ID, &o.CheckoutSessionID, &userID, &guestEmail, &status,
		&couponCode, &o.Subtotal, &o.Tax, &o.ShippingCost, &o.DiscountAmount,
		&o.Total, &o.TrackingNumber, &o.Carrier, &o.PaidAt, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	if userID != nil {
		o.UserID = *userID
	}
	if guestEmail != nil {
		o.GuestEmail = *guestEmail
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		item        order.Item
		variationID *string
	)
	err := row.Scan(&item.ProductID, &variationID, &item.Quantity,
		&item.UnitPrice, &item.TotalPrice)
	if variationID != nil {
		item.VariationID = *variationID
	}
	return item, err
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
