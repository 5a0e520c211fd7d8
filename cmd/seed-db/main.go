// Command seed-db loads products, coupons, and shipping settings into the
// database for local development and demos.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mirrorexhibit/storefront/internal/storage/postgres"
)

type variationJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type productJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Category   string          `json:"category"`
	ImageURL   string          `json:"image_url"`
	Variations []variationJSON `json:"variations"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedShipping(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping settings")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	const upsertProduct = `INSERT INTO products (id, name, price, category, image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			category = EXCLUDED.category, image_url = EXCLUDED.image_url`
	const upsertVariation = `INSERT INTO product_variations (id, product_id, name, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProduct, p.ID, p.Name, p.Price, p.Category, p.ImageURL); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for _, v := range p.Variations {
			if _, err := pool.Exec(ctx, upsertVariation, v.ID, p.ID, v.Name, v.Price); err != nil {
				return errors.Wrapf(err, "upsert variation %s", v.ID)
			}
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	const upsertCoupon = `INSERT INTO coupons
		(code, discount_type, discount_value, min_purchase, max_uses, expires_at, is_active, description)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			min_purchase = EXCLUDED.min_purchase, max_uses = EXCLUDED.max_uses,
			expires_at = EXCLUDED.expires_at, description = EXCLUDED.description`

	nextYear := time.Now().AddDate(1, 0, 0)
	hundred := 100
	coupons := []struct {
		code         string
		discountType string
		value        decimal.Decimal
		minPurchase  decimal.Decimal
		maxUses      *int
		expiresAt    *time.Time
		description  string
	}{
		{
			code:         "SAVE10",
			discountType: "percentage",
			value:        decimal.NewFromInt(10),
			minPurchase:  decimal.NewFromInt(50),
			maxUses:      &hundred,
			expiresAt:    &nextYear,
			description:  "10% off orders over $50",
		},
		{
			code:         "WELCOME15",
			discountType: "fixed",
			value:        decimal.NewFromInt(15),
			minPurchase:  decimal.NewFromInt(75),
			description:  "$15 off your first order over $75",
		},
	}

	for _, c := range coupons {
		if _, err := pool.Exec(ctx, upsertCoupon,
			c.code, c.discountType, c.value, c.minPurchase, c.maxUses, c.expiresAt, c.description,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("description", c.description))
	}

	return nil
}

func seedShipping(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding shipping settings")

	const upsertSettings = `INSERT INTO shipping_settings (country, free_shipping_threshold)
		VALUES ($1, $2)
		ON CONFLICT (country) DO UPDATE SET free_shipping_threshold = EXCLUDED.free_shipping_threshold`
	const resetOptions = `DELETE FROM shipping_options WHERE country = $1`
	const insertOption = `INSERT INTO shipping_options (country, name, carrier, price, estimated_days)
		VALUES ($1, $2, $3, $4, $5)`

	type option struct {
		name    string
		carrier string
		price   decimal.Decimal
		days    int
	}
	settings := []struct {
		country   string
		threshold decimal.Decimal
		options   []option
	}{
		{
			country:   "US",
			threshold: decimal.NewFromInt(100),
			options: []option{
				{"Standard", "usps", decimal.RequireFromString("7.95"), 5},
				{"Express", "fedex", decimal.RequireFromString("19.95"), 2},
			},
		},
		{
			country:   "*",
			threshold: decimal.NewFromInt(150),
			options: []option{
				{"International Standard", "dhl", decimal.RequireFromString("24.95"), 10},
			},
		},
	}

	for _, s := range settings {
		if _, err := pool.Exec(ctx, upsertSettings, s.country, s.threshold); err != nil {
			return errors.Wrapf(err, "upsert shipping settings %s", s.country)
		}
		if _, err := pool.Exec(ctx, resetOptions, s.country); err != nil {
			return errors.Wrapf(err, "reset shipping options %s", s.country)
		}
		for _, o := range s.options {
			if _, err := pool.Exec(ctx, insertOption, s.country, o.name, o.carrier, o.price, o.days); err != nil {
				return errors.Wrapf(err, "insert shipping option %s/%s", s.country, o.name)
			}
		}

		slog.Info("upserted shipping settings", slog.String("country", s.country))
	}

	return nil
}
