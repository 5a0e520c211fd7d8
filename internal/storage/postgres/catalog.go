package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirrorexhibit/storefront/internal/domain/catalog"
)

const (
	getProductsByIDsSQL = `SELECT id, name, price, category, image_url
		FROM products WHERE id = ANY($1)`

	getVariationSQL = `SELECT id, product_id, name, price
		FROM product_variations WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByIDs fetches the given products in a single query. Missing ids are
// simply absent from the result; callers detect them.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		var p catalog.Product
		err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.ImageURL)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	return products, nil
}

// GetVariation fetches a product variation by id.
// Returns catalog.ErrNotFound when it does not exist.
func (r *CatalogRepository) GetVariation(ctx context.Context, variationID string) (*catalog.Variation, error) {
	rows, err := r.pool.Query(ctx, getVariationSQL, variationID)
	if err != nil {
		return nil, fmt.Errorf("getting variation %q: %w", variationID, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (catalog.Variation, error) {
		var v catalog.Variation
		err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price)
		return v, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variation %q: %w", variationID, err)
	}
	return &v, nil
}
