package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirrorexhibit/storefront/internal/domain/shipping"
)

const (
	getShippingThresholdSQL = `SELECT country, free_shipping_threshold
		FROM shipping_settings WHERE country = $1`

	getShippingOptionsSQL = `SELECT name, carrier, price, estimated_days
		FROM shipping_options WHERE country = $1
		ORDER BY price`
)

var _ shipping.SettingsRepository = (*ShippingRepository)(nil)

// ShippingRepository implements shipping.SettingsRepository backed by
// PostgreSQL.
type ShippingRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRepository returns a ShippingRepository that uses the given pool.
func NewShippingRepository(pool *pgxpool.Pool) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// ForCountry loads the settings row and its options for the given country,
// falling back to the "*" default row. Returns shipping.ErrNoSettings when
// neither exists.
func (r *ShippingRepository) ForCountry(ctx context.Context, country string) (*shipping.Settings, error) {
	settings, err := r.getSettings(ctx, country)
	if errors.Is(err, pgx.ErrNoRows) {
		settings, err = r.getSettings(ctx, "*")
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrNoSettings
		}
	}
	if err != nil {
		return nil, fmt.Errorf("getting shipping settings for %q: %w", country, err)
	}

	rows, err := r.pool.Query(ctx, getShippingOptionsSQL, settings.Country)
	if err != nil {
		return nil, fmt.Errorf("getting shipping options for %q: %w", settings.Country, err)
	}

	settings.Options, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (shipping.Option, error) {
		var o shipping.Option
		err := row.Scan(&o.Name, &o.Carrier, &o.Price, &o.EstimatedDays)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning shipping options for %q: %w", settings.Country, err)
	}
	return settings, nil
}

func (r *ShippingRepository) getSettings(ctx context.Context, country string) (*shipping.Settings, error) {
	var s shipping.Settings
	err := r.pool.QueryRow(ctx, getShippingThresholdSQL, country).Scan(&s.Country, &s.Threshold)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
