package shipping

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mirrorexhibit/storefront/internal/domain/catalog"
)

type mockSettingsRepo struct {
	settings *Settings
	err      error
}

func (m *mockSettingsRepo) ForCountry(_ context.Context, _ string) (*Settings, error) {
	return m.settings, m.err
}

type mockRateProvider struct {
	options []Option
	err     error
}

func (m *mockRateProvider) Rates(_ context.Context, _ Address, _ []RateItem) ([]Option, error) {
	return m.options, m.err
}

type mockCatalog struct {
	products []catalog.Product
	err      error
}

func (m *mockCatalog) GetByIDs(_ context.Context, _ []string) ([]catalog.Product, error) {
	return m.products, m.err
}

func (m *mockCatalog) GetVariation(_ context.Context, _ string) (*catalog.Variation, error) {
	return nil, catalog.ErrNotFound
}

func usSettings(threshold int64) *Settings {
	return &Settings{
		Country:   "US",
		Threshold: decimal.NewFromInt(threshold),
		Options: []Option{
			{Name: "Standard", Price: decimal.RequireFromString("7.95"), EstimatedDays: 5},
			{Name: "Express", Price: decimal.RequireFromString("19.95"), EstimatedDays: 2},
		},
	}
}

func TestResolver_RemainingForFreeShipping(t *testing.T) {
	tests := []struct {
		name          string
		threshold     int64
		subtotal      string
		wantRemaining string
		wantEligible  bool
	}{
		{"below threshold", 100, "65.00", "35.00", false},
		{"at threshold", 100, "100.00", "0.00", true},
		{"above threshold", 100, "150.00", "0.00", true},
		{"zero subtotal", 100, "0.00", "100.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&mockSettingsRepo{settings: usSettings(tt.threshold)}, &mockCatalog{}, nil, zap.NewNop())

			items := []RateItem{{ProductID: "p1", Quantity: 1, UnitPrice: decimal.RequireFromString(tt.subtotal)}}
			if tt.subtotal == "0.00" {
				items = nil
			}

			quote, err := r.Resolve(context.Background(), Address{Country: "US"}, items)
			require.NoError(t, err)

			assert.Equal(t, tt.wantRemaining, quote.Remaining.StringFixed(2))
			assert.Equal(t, tt.wantEligible, quote.FreeShippingEligible)
			assert.Equal(t, quote.Remaining.IsZero(), quote.FreeShippingEligible)
		})
	}
}

func TestResolver_FreeShippingWaivesCheapestOption(t *testing.T) {
	r := NewResolver(&mockSettingsRepo{settings: usSettings(100)}, &mockCatalog{}, nil, zap.NewNop())

	quote, err := r.Resolve(context.Background(), Address{Country: "US"}, []RateItem{
		{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(60)},
	})
	require.NoError(t, err)
	require.True(t, quote.FreeShippingEligible)
	require.Len(t, quote.Options, 2)
	assert.True(t, quote.Options[0].Price.IsZero(), "standard option should be free")
	assert.Equal(t, "19.95", quote.Options[1].Price.StringFixed(2))
}

func TestResolver_LiveRatesPreferred(t *testing.T) {
	provider := &mockRateProvider{options: []Option{
		{Name: "Courier Ground", Carrier: "ups", Price: decimal.RequireFromString("6.50"), EstimatedDays: 4},
	}}
	r := NewResolver(&mockSettingsRepo{settings: usSettings(100)}, &mockCatalog{}, provider, zap.NewNop())

	quote, err := r.Resolve(context.Background(), Address{Country: "US"}, []RateItem{
		{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	require.Len(t, quote.Options, 1)
	assert.Equal(t, "Courier Ground", quote.Options[0].Name)
}

func TestResolver_ProviderFailureDegradesToStatic(t *testing.T) {
	provider := &mockRateProvider{err: errors.New("carrier 503")}
	r := NewResolver(&mockSettingsRepo{settings: usSettings(100)}, &mockCatalog{}, provider, zap.NewNop())

	quote, err := r.Resolve(context.Background(), Address{Country: "US"}, []RateItem{
		{ProductID: "p1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)},
	})
	require.NoError(t, err, "carrier failure must not fail the request")
	require.Len(t, quote.Options, 2)
	assert.Equal(t, "Standard", quote.Options[0].Name)
}

func TestResolver_FillsMissingPricesFromCatalog(t *testing.T) {
	cat := &mockCatalog{products: []catalog.Product{
		{ID: "p1", Price: decimal.RequireFromString("40.00")},
	}}
	r := NewResolver(&mockSettingsRepo{settings: usSettings(100)}, cat, nil, zap.NewNop())

	quote, err := r.Resolve(context.Background(), Address{Country: "US"}, []RateItem{
		{ProductID: "p1", Quantity: 2}, // no price snapshot on the line
	})
	require.NoError(t, err)
	// 2 x 40 = 80, remaining 20.
	assert.Equal(t, "20.00", quote.Remaining.StringFixed(2))
}

func TestResolver_SettingsError(t *testing.T) {
	r := NewResolver(&mockSettingsRepo{err: errors.New("db down")}, &mockCatalog{}, nil, zap.NewNop())

	_, err := r.Resolve(context.Background(), Address{Country: "US"}, nil)
	require.Error(t, err)
}
