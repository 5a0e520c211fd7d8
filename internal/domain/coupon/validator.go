package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Rejection reasons surfaced to the shopper. Invalid coupons are a soft
// outcome of validation, not an error: the HTTP layer reports them inside a
// 200 response.
const (
	ReasonInvalidCode = "Invalid coupon code"
	ReasonExpired     = "Coupon has expired"
	ReasonMaxUses     = "Coupon has reached its maximum number of uses"
)

// Validation is the outcome of validating a code against a cart subtotal.
type Validation struct {
	Valid    bool
	Discount decimal.Decimal
	Rule     *Rule
	Reason   string
}

func reject(reason string) Validation {
	return Validation{Reason: reason}
}

// Validator checks coupon codes against cart subtotals. Rules are applied in
// order, first failure wins: existence/active, expiry, usage cap, minimum
// purchase.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate looks up the code and applies the eligibility rules. A rejected
// coupon yields Valid=false with a shopper-facing Reason; only repository
// failures produce an error.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (Validation, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return reject(ReasonInvalidCode), nil
		}
		return Validation{}, errors.Wrap(err, "lookup coupon")
	}

	if !rule.Active {
		return reject(ReasonInvalidCode), nil
	}
	if rule.ExpiresAt != nil && !v.now().Before(*rule.ExpiresAt) {
		return reject(ReasonExpired), nil
	}
	if rule.MaxUses != nil && rule.Uses >= *rule.MaxUses {
		return reject(ReasonMaxUses), nil
	}
	if subtotal.LessThan(rule.MinPurchase) {
		return reject(fmt.Sprintf("Minimum purchase of $%s required", rule.MinPurchase.StringFixed(2))), nil
	}

	return Validation{
		Valid:    true,
		Discount: Discount(rule, subtotal),
		Rule:     rule,
	}, nil
}

// Discount computes the discount amount for a rule against a subtotal.
// The result is rounded to 2 decimal places and never exceeds the subtotal
// or drops below zero.
func Discount(rule *Rule, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(decimal.NewFromInt(100))
	case DiscountFixed:
		amount = rule.Value
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}
