package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mirrorexhibit/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, discount_value, min_purchase,
		max_uses, current_uses, expires_at, is_active, description
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	redeemCouponSQL = `UPDATE coupons SET current_uses = current_uses + 1
		WHERE UPPER(code) = UPPER($1)
		AND (max_uses IS NULL OR current_uses < max_uses)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Redeem increments the usage counter with the cap check in the same
// statement, so concurrent redemptions near the limit cannot overshoot it.
// Returns coupon.ErrExhausted when no row qualifies.
func (r *CouponRepository) Redeem(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, redeemCouponSQL, code)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		value        decimal.Decimal
		minPurchase  decimal.Decimal
		maxUses      *int32
		currentUses  int32
		expiresAt    *time.Time
	)
	err := row.Scan(
		&rule.Code, &discountType, &value, &minPurchase,
		&maxUses, &currentUses, &expiresAt, &rule.Active, &rule.Description,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.Value = value
	rule.MinPurchase = minPurchase
	if maxUses != nil {
		n := int(*maxUses)
		rule.MaxUses = &n
	}
	rule.Uses = int(currentUses)
	rule.ExpiresAt = expiresAt
	return rule, err
}
