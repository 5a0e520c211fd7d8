package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExhausted is returned by Redeem when a coupon has no uses left.
	ErrExhausted = errors.New("coupon usage limit reached")
)

// Rule defines a coupon's discount behaviour and eligibility constraints.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinPurchase  decimal.Decimal
	// MaxUses is nil for unlimited coupons.
	MaxUses     *int
	Uses        int
	ExpiresAt   *time.Time
	Active      bool
	Description string
}

// Repository provides lookup and redemption of coupon rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// Redeem increments the usage counter, conditionally on the cap not being
	// reached. Returns ErrExhausted when zero rows match.
	Redeem(ctx context.Context, code string) error
}
