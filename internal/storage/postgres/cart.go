package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirrorexhibit/storefront/internal/domain/cart"
)

const (
	listCartByUserSQL = `SELECT c.id, c.user_id, c.guest_token, c.product_id, c.variation_id,
		c.quantity, COALESCE(v.price, p.price)
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		LEFT JOIN product_variations v ON v.id = c.variation_id
		WHERE c.user_id = $1
		ORDER BY c.created_at`

	listCartByGuestSQL = `SELECT c.id, c.user_id, c.guest_token, c.product_id, c.variation_id,
		c.quantity, COALESCE(v.price, p.price)
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		LEFT JOIN product_variations v ON v.id = c.variation_id
		WHERE c.guest_token = $1
		ORDER BY c.created_at`

	// Merge step 1: fold guest quantities into user lines that already exist
	// for the same (product, variation).
	mergeSumSQL = `UPDATE cart_items u
		SET quantity = u.quantity + g.quantity
		FROM cart_items g
		WHERE g.guest_token = $1
		AND u.user_id = $2
		AND u.product_id = g.product_id
		AND COALESCE(u.variation_id, '') = COALESCE(g.variation_id, '')`

	// Merge step 2: adopt guest lines the user does not have yet.
	mergeAdoptSQL = `UPDATE cart_items g
		SET user_id = $2, guest_token = NULL
		WHERE g.guest_token = $1
		AND NOT EXISTS (
			SELECT 1 FROM cart_items u
			WHERE u.user_id = $2
			AND u.product_id = g.product_id
			AND COALESCE(u.variation_id, '') = COALESCE(g.variation_id, '')
		)`

	// Merge step 3: drop whatever guest lines remain (the summed ones).
	mergeCleanupSQL = `DELETE FROM cart_items WHERE guest_token = $1`

	clearCartByUserSQL  = `DELETE FROM cart_items WHERE user_id = $1`
	clearCartByGuestSQL = `DELETE FROM cart_items WHERE guest_token = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// List returns the owner's cart lines with unit prices resolved from the
// catalog (variation price when the line has one, base price otherwise).
func (r *CartRepository) List(ctx context.Context, owner cart.Owner) ([]cart.Item, error) {
	query, arg := listCartByUserSQL, owner.UserID
	if owner.UserID == "" {
		query, arg = listCartByGuestSQL, owner.GuestToken
	}

	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}

	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("scanning cart items: %w", err)
	}
	return items, nil
}

// Merge folds the guest cart into the user's cart in one transaction:
// quantities sum for lines present in both, remaining guest lines are
// adopted, and leftover guest rows are deleted. Returns the number of guest
// lines consumed.
func (r *CartRepository) Merge(ctx context.Context, guestToken, userID string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	summed, err := tx.Exec(ctx, mergeSumSQL, guestToken, userID)
	if err != nil {
		return 0, fmt.Errorf("summing duplicate cart lines: %w", err)
	}

	adopted, err := tx.Exec(ctx, mergeAdoptSQL, guestToken, userID)
	if err != nil {
		return 0, fmt.Errorf("adopting guest cart lines: %w", err)
	}

	if _, err := tx.Exec(ctx, mergeCleanupSQL, guestToken); err != nil {
		return 0, fmt.Errorf("deleting guest cart lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing cart merge: %w", err)
	}
	return int(summed.RowsAffected() + adopted.RowsAffected()), nil
}

// Clear deletes every line of the owner's cart.
func (r *CartRepository) Clear(ctx context.Context, owner cart.Owner) error {
	query, arg := clearCartByUserSQL, owner.UserID
	if owner.UserID == "" {
		query, arg = clearCartByGuestSQL, owner.GuestToken
	}

	if _, err := r.pool.Exec(ctx, query, arg); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		item        cart.Item
		userID      *string
		guestToken  *string
		variationID *string
	)
	err := row.Scan(&item.ID, &userID, &guestToken, &item.ProductID, &variationID,
		&item.Quantity, &item.UnitPrice)
	if userID != nil {
		item.Owner.UserID = *userID
	}
	if guestToken != nil {
		item.Owner.GuestToken = *guestToken
	}
	if variationID != nil {
		item.VariationID = *variationID
	}
	return item, err
}
