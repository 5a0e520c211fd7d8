package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mirrorexhibit/storefront/internal/domain/catalog"
)

// Resolver computes shipping options and free-shipping eligibility for a
// destination and cart. Live carrier rates are preferred when a provider is
// configured; any provider failure degrades to the static options so the
// checkout page keeps rendering.
type Resolver struct {
	settings SettingsRepository
	catalog  catalog.Repository
	provider RateProvider // nil disables live rates
	lg       *zap.Logger
}

// NewResolver creates a Resolver. provider may be nil.
func NewResolver(settings SettingsRepository, cat catalog.Repository, provider RateProvider, lg *zap.Logger) *Resolver {
	return &Resolver{
		settings: settings,
		catalog:  cat,
		provider: provider,
		lg:       lg,
	}
}

// Resolve returns the shipping quote for the destination and items. Items
// with a zero unit price are filled in from the catalog before the subtotal
// is computed.
func (r *Resolver) Resolve(ctx context.Context, addr Address, items []RateItem) (*Quote, error) {
	items, err := r.fillPrices(ctx, items)
	if err != nil {
		return nil, errors.Wrap(err, "fill catalog prices")
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	// Static settings and live rates are independent lookups; fetch both at
	// once. Only the settings fetch can fail the request.
	var (
		settings *Settings
		live     []Option
		liveErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := r.settings.ForCountry(gctx, addr.Country)
		if err != nil {
			return errors.Wrap(err, "shipping settings")
		}
		settings = s
		return nil
	})
	if r.provider != nil {
		g.Go(func() error {
			live, liveErr = r.provider.Rates(gctx, addr, items)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	options := settings.Options
	if r.provider != nil {
		if liveErr != nil {
			r.lg.Warn("Carrier rate lookup failed, using static options",
				zap.String("country", addr.Country),
				zap.Error(liveErr),
			)
		} else if len(live) > 0 {
			options = live
		}
	}

	remaining := settings.Threshold.Sub(subtotal)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	remaining = remaining.Round(2)
	eligible := remaining.IsZero()

	// Free shipping waives the cheapest option.
	options = cloneOptions(options)
	if eligible && len(options) > 0 {
		cheapest := 0
		for i, opt := range options {
			if opt.Price.LessThan(options[cheapest].Price) {
				cheapest = i
			}
		}
		options[cheapest].Price = decimal.Zero
	}

	return &Quote{
		Options:              options,
		FreeShippingEligible: eligible,
		Threshold:            settings.Threshold,
		Remaining:            remaining,
	}, nil
}

func (r *Resolver) fillPrices(ctx context.Context, items []RateItem) ([]RateItem, error) {
	var missing []string
	for _, item := range items {
		if item.UnitPrice.IsZero() {
			missing = append(missing, item.ProductID)
		}
	}
	if len(missing) == 0 {
		return items, nil
	}

	products, err := r.catalog.GetByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}

	out := make([]RateItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].UnitPrice.IsZero() {
			out[i].UnitPrice = prices[out[i].ProductID]
		}
	}
	return out, nil
}

func cloneOptions(options []Option) []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}
