package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirrorexhibit/storefront/internal/domain/order"
)

const (
	putPendingOrderSQL = `INSERT INTO pending_orders (checkout_session_id, payload, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (checkout_session_id) DO UPDATE SET payload = EXCLUDED.payload`

	getPendingOrderSQL = `SELECT payload FROM pending_orders WHERE checkout_session_id = $1`

	deletePendingOrderSQL = `DELETE FROM pending_orders WHERE checkout_session_id = $1`
)

var _ order.PendingRepository = (*PendingRepository)(nil)

// PendingRepository implements order.PendingRepository backed by PostgreSQL.
// The staging record is stored as a JSONB payload keyed by session id.
type PendingRepository struct {
	pool *pgxpool.Pool
}

// NewPendingRepository returns a PendingRepository that uses the given pool.
func NewPendingRepository(pool *pgxpool.Pool) *PendingRepository {
	return &PendingRepository{pool: pool}
}

// Put stores the staging record. Re-staging the same session replaces the
// payload.
func (r *PendingRepository) Put(ctx context.Context, p *order.Pending) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding pending order: %w", err)
	}

	if _, err := r.pool.Exec(ctx, putPendingOrderSQL, p.CheckoutSessionID, payload, p.CreatedAt); err != nil {
		return fmt.Errorf("storing pending order %q: %w", p.CheckoutSessionID, err)
	}
	return nil
}

// GetBySession fetches the staging record for the given session id.
// Returns order.ErrNotFound when none exists.
func (r *PendingRepository) GetBySession(ctx context.Context, sessionID string) (*order.Pending, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, getPendingOrderSQL, sessionID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting pending order %q: %w", sessionID, err)
	}

	var p order.Pending
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding pending order %q: %w", sessionID, err)
	}
	return &p, nil
}

// Delete removes the staging record.
func (r *PendingRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, deletePendingOrderSQL, sessionID); err != nil {
		return fmt.Errorf("deleting pending order %q: %w", sessionID, err)
	}
	return nil
}
