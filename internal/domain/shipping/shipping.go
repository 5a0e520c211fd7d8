package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Address is a shipping destination. Only Country drives rate selection and
// free-shipping thresholds; the remaining fields are passed through to the
// carrier.
type Address struct {
	Line1      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Option is a single shipping choice offered to the shopper.
type Option struct {
	Name          string
	Carrier       string
	Price         decimal.Decimal
	EstimatedDays int
}

// Settings holds the per-country static shipping configuration: the
// free-shipping threshold and the fallback options used when no live carrier
// rates are available.
type Settings struct {
	Country   string
	Threshold decimal.Decimal
	Options   []Option
}

// Quote is the outcome of resolving shipping for a destination and cart.
type Quote struct {
	Options              []Option
	FreeShippingEligible bool
	Threshold            decimal.Decimal
	Remaining            decimal.Decimal
}

// ErrNoSettings is returned when no settings row exists for a country and no
// default row is configured.
var ErrNoSettings = errors.New("no shipping settings for country")

// SettingsRepository provides the static shipping configuration. ForCountry
// falls back to the default ("*") row when the country has no dedicated entry.
type SettingsRepository interface {
	ForCountry(ctx context.Context, country string) (*Settings, error)
}

// RateProvider fetches live carrier rates. Implementations call an external
// API; failures degrade to the static options and never fail the request.
type RateProvider interface {
	Rates(ctx context.Context, addr Address, items []RateItem) ([]Option, error)
}

// RateItem describes a cart line for carrier rate calculation.
type RateItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}
