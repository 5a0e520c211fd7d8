package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule *Rule
	err  error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponRepo) Redeem(_ context.Context, _ string) error {
	return nil
}

func intPtr(n int) *int { return &n }

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name         string
		repo         *mockCouponRepo
		subtotal     decimal.Decimal
		wantValid    bool
		wantDiscount decimal.Decimal
		wantReason   string
	}{
		{
			name: "SAVE10 percentage with min purchase met",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "SAVE10",
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(10),
				MinPurchase:  decimal.NewFromInt(50),
				Active:       true,
			}},
			subtotal:     decimal.NewFromInt(100),
			wantValid:    true,
			wantDiscount: decimal.RequireFromString("10.00"),
		},
		{
			name: "SAVE10 below minimum purchase names the required amount",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "SAVE10",
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(10),
				MinPurchase:  decimal.NewFromInt(50),
				Active:       true,
			}},
			subtotal:   decimal.NewFromInt(40),
			wantReason: "Minimum purchase of $50.00 required",
		},
		{
			name:       "unknown code",
			repo:       &mockCouponRepo{err: ErrNotFound},
			subtotal:   decimal.NewFromInt(100),
			wantReason: ReasonInvalidCode,
		},
		{
			name: "inactive coupon reads as invalid code",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "OFF",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(5),
				Active:       false,
			}},
			subtotal:   decimal.NewFromInt(100),
			wantReason: ReasonInvalidCode,
		},
		{
			name: "expired coupon",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "OLD",
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(10),
				ExpiresAt:    &pastTime,
				Active:       true,
			}},
			subtotal:   decimal.NewFromInt(100),
			wantReason: ReasonExpired,
		},
		{
			name: "expiry in the future passes",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "FRESH",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(5),
				ExpiresAt:    &futureTime,
				Active:       true,
			}},
			subtotal:     decimal.NewFromInt(100),
			wantValid:    true,
			wantDiscount: decimal.RequireFromString("5.00"),
		},
		{
			name: "usage at cap rejected",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "LIMITED",
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(10),
				MaxUses:      intPtr(100),
				Uses:         100,
				Active:       true,
			}},
			subtotal:   decimal.NewFromInt(100),
			wantReason: ReasonMaxUses,
		},
		{
			name: "usage one below cap passes",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "LIMITED",
				DiscountType: DiscountPercentage,
				Value:        decimal.NewFromInt(10),
				MaxUses:      intPtr(100),
				Uses:         99,
				Active:       true,
			}},
			subtotal:     decimal.NewFromInt(100),
			wantValid:    true,
			wantDiscount: decimal.RequireFromString("10.00"),
		},
		{
			name: "nil max uses is unlimited",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "FOREVER",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(5),
				Uses:         99999,
				Active:       true,
			}},
			subtotal:     decimal.NewFromInt(100),
			wantValid:    true,
			wantDiscount: decimal.RequireFromString("5.00"),
		},
		{
			name: "fixed discount capped at subtotal",
			repo: &mockCouponRepo{rule: &Rule{
				Code:         "BIG",
				DiscountType: DiscountFixed,
				Value:        decimal.NewFromInt(500),
				Active:       true,
			}},
			subtotal:     decimal.NewFromInt(30),
			wantValid:    true,
			wantDiscount: decimal.RequireFromString("30.00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), "CODE", tt.subtotal)
			require.NoError(t, err)

			if !tt.wantValid {
				assert.False(t, got.Valid)
				assert.Equal(t, tt.wantReason, got.Reason)
				return
			}

			assert.True(t, got.Valid)
			assert.Empty(t, got.Reason)
			assert.True(t, tt.wantDiscount.Equal(got.Discount),
				"expected discount %s, got %s", tt.wantDiscount, got.Discount)
			assert.True(t, got.Discount.LessThanOrEqual(tt.subtotal))
		})
	}
}

func TestValidator_RepositoryError(t *testing.T) {
	v := NewValidator(&mockCouponRepo{err: errors.New("db down")})

	_, err := v.Validate(context.Background(), "ANY", decimal.NewFromInt(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestDiscount_NeverExceedsSubtotal(t *testing.T) {
	subtotals := []decimal.Decimal{
		decimal.Zero,
		decimal.RequireFromString("0.01"),
		decimal.NewFromInt(10),
		decimal.RequireFromString("99.99"),
		decimal.NewFromInt(10000),
	}
	rules := []*Rule{
		{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10)},
		{DiscountType: DiscountPercentage, Value: decimal.NewFromInt(150)},
		{DiscountType: DiscountFixed, Value: decimal.NewFromInt(25)},
		{DiscountType: DiscountFixed, Value: decimal.NewFromInt(-5)},
	}

	for _, rule := range rules {
		for _, subtotal := range subtotals {
			d := Discount(rule, subtotal)
			assert.False(t, d.IsNegative(), "discount %s negative for %s", d, subtotal)
			assert.True(t, d.LessThanOrEqual(subtotal),
				"discount %s exceeds subtotal %s", d, subtotal)
		}
	}
}
