package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item available for purchase. Price is the base price;
// a variation may override it.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	ImageURL string
}

// Variation is a purchasable variant of a product (size, frame, finish).
type Variation struct {
	ID        string
	ProductID string
	Name      string
	Price     decimal.Decimal
}

// Repository defines read operations for the product catalog.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// GetVariation returns the variation and its owning product.
	GetVariation(ctx context.Context, variationID string) (*Variation, error)
}
