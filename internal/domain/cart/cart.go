package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Owner identifies whose cart a line belongs to: an authenticated user or a
// guest session. Exactly one field is set.
type Owner struct {
	UserID     string
	GuestToken string
}

// IsZero reports whether the owner identifies nobody.
func (o Owner) IsZero() bool {
	return o.UserID == "" && o.GuestToken == ""
}

// Item is a single cart line. UnitPrice may be zero when the line was stored
// without a price snapshot; callers fill it in from the catalog.
type Item struct {
	ID          string
	Owner       Owner
	ProductID   string
	VariationID string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// ErrEmptyCart is returned when an operation requires a non-empty cart.
var ErrEmptyCart = errors.New("cart is empty")

// Repository defines persistence operations for cart lines.
type Repository interface {
	List(ctx context.Context, owner Owner) ([]Item, error)
	// Merge folds the guest cart into the user's cart in one transaction.
	// Lines for the same (product, variation) sum their quantities; guest rows
	// are removed afterwards. Returns the number of guest lines consumed.
	Merge(ctx context.Context, guestToken, userID string) (int, error)
	Clear(ctx context.Context, owner Owner) error
}

// Subtotal returns the sum of unit price times quantity across items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}
