package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigurationIsValid(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfiguration().Validate())
	require.NoError(t, DefaultConfiguration().Normalize().Validate())
}

func TestConfigurationValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		problem string
	}{
		{name: "negative vat", mutate: func(c *Configuration) { c.VatPct = -0.1 }, problem: "vat_pct"},
		{name: "fraction above one", mutate: func(c *Configuration) { c.BufferPct = 1.5 }, problem: "buffer_pct"},
		{name: "negative fixed fee", mutate: func(c *Configuration) { c.FixedFeesLocal = -5 }, problem: "fixed_fees_local"},
		{name: "zero fx rate", mutate: func(c *Configuration) { c.FxRate["EUR"] = 0 }, problem: "fx_rate[EUR]"},
		{name: "missing usd anchor", mutate: func(c *Configuration) { delete(c.FxRate, "USD") }, problem: "fx_rate[USD] is required"},
		{name: "unknown rounding", mutate: func(c *Configuration) { c.RoundingPolicy = "nearest3" }, problem: "rounding_policy"},
		{name: "unknown profit mode", mutate: func(c *Configuration) { c.ProfitMode = "markup" }, problem: "profit_mode"},
		{name: "unknown shipping strategy", mutate: func(c *Configuration) { c.ShippingRateStrategy = "zone" }, problem: "shipping_rate_strategy"},
		{name: "zero volumetric divisor", mutate: func(c *Configuration) { c.VolumetricDivisor = 0 }, problem: "volumetric_divisor"},
		{
			name: "open tier not last",
			mutate: func(c *Configuration) {
				c.ShippingRateStrategy = ShippingTieredByWeight
				c.WeightTiers = []WeightTier{{UpToKg: 0, RatePerKg: 10}, {UpToKg: 3, RatePerKg: 5}}
			},
			problem: "open-ended",
		},
		{
			name: "tiers not increasing",
			mutate: func(c *Configuration) {
				c.ShippingRateStrategy = ShippingTieredByWeight
				c.WeightTiers = []WeightTier{{UpToKg: 5, RatePerKg: 10}, {UpToKg: 3, RatePerKg: 5}}
			},
			problem: "must increase",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig))
			require.Contains(t, err.Error(), tc.problem)
		})
	}
}

func TestConfigurationValidate_CollectsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfiguration()
	cfg.VatPct = -1
	cfg.CustomsPct = 2
	cfg.RoundingPolicy = "x"

	var cfgErr *ConfigError
	require.True(t, errors.As(cfg.Validate(), &cfgErr))
	assert.Len(t, cfgErr.Problems, 3)
}

func TestConfigurationNormalize(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfiguration()
	cfg.LocalCurrency = " ils "
	cfg.FxRate = map[string]float64{"eur": 4.1, "usd": 3.6}
	cfg.VatPct = math.NaN()
	cfg.BufferPct = math.Inf(1)
	cfg.ProfitMode = ""
	cfg.ShippingRateStrategy = ""
	cfg.VolumetricDivisor = 0

	out := cfg.Normalize()
	assert.Equal(t, "ILS", out.LocalCurrency)
	assert.Equal(t, map[string]float64{"EUR": 4.1, "USD": 3.6}, out.FxRate)
	assert.Equal(t, 0.18, out.VatPct)
	assert.Equal(t, 0.05, out.BufferPct)
	assert.Equal(t, ProfitModeTargetMargin, out.ProfitMode)
	assert.Equal(t, ShippingFlatPerKg, out.ShippingRateStrategy)
	assert.Equal(t, DefaultVolumetricDivisor, out.VolumetricDivisor)
	require.NoError(t, out.Validate())

	// The receiver is untouched.
	assert.Equal(t, 4.1, cfg.FxRate["eur"])
}

func TestConfigurationClone(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfiguration()
	clone := cfg.Clone()
	clone.FxRate["EUR"] = 99
	clone.WeightTiers[0].RatePerKg = 1

	assert.Equal(t, 4.0, cfg.FxRate["EUR"])
	assert.Equal(t, 55.0, cfg.WeightTiers[0].RatePerKg)
}

func TestAggregateLines(t *testing.T) {
	t.Parallel()

	in, err := AggregateLines([]OrderLine{
		{Currency: "eur", UnitPrice: 20, Quantity: 2, UnitWeightKg: 0.3},
		{Currency: "EUR", UnitPrice: 15.5, Quantity: 1, UnitWeightKg: 0.25, DimensionsCm: &Dimensions{L: 10, W: 10, H: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", in.Currency)
	assert.InDelta(t, 55.5, in.ProductPrice, tolerance)
	assert.InDelta(t, 0.85, in.WeightKg, tolerance)
	assert.Nil(t, in.DimensionsCm)

	single, err := AggregateLines([]OrderLine{{Currency: "GBP", UnitPrice: 10, Quantity: 1, DimensionsCm: &Dimensions{L: 30, W: 20, H: 10}}})
	require.NoError(t, err)
	require.NotNil(t, single.DimensionsCm)
	assert.Equal(t, 30.0, single.DimensionsCm.L)
}

func TestAggregateLines_Errors(t *testing.T) {
	t.Parallel()

	_, err := AggregateLines(nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = AggregateLines([]OrderLine{
		{Currency: "EUR", UnitPrice: 1, Quantity: 1},
		{Currency: "USD", UnitPrice: 1, Quantity: 1},
	})
	require.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = AggregateLines([]OrderLine{{Currency: "EUR", UnitPrice: 1, Quantity: 0}})
	var inputErr *InvalidInputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "lines[0].quantity", inputErr.Field)

	_, err = AggregateLines([]OrderLine{{Currency: "EUR", UnitPrice: -3, Quantity: 1}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpgradeBreakdown(t *testing.T) {
	t.Parallel()

	legacy := Breakdown{Version: 1, PriceExVat: 100, CostExVat: 80}
	up := UpgradeBreakdown(legacy, DefaultConfiguration())

	assert.Equal(t, BreakdownVersion, up.Version)
	assert.Equal(t, 0.18, up.Rates.VatPct)
	assert.Equal(t, 0.025, up.Rates.ProcessorPct)
	assert.Equal(t, 30.0, up.Rates.DomesticShipLocal)
	assert.Equal(t, 3.7, up.Rates.UsdRate)
	assert.Equal(t, 100.0, up.PriceExVat)
	assert.Equal(t, "ILS", up.Rates.LocalCurrency)
	assert.Empty(t, up.Rates.Currency)
	assert.Zero(t, up.Rates.FxRate)

	eur, err := ComputeBreakdown(DefaultConfiguration(), ProductInput{Currency: "EUR", ProductPrice: 50})
	require.NoError(t, err)
	eur.Version = 1
	eur.Rates = Rates{}
	upEUR := UpgradeBreakdown(eur, DefaultConfiguration())
	assert.Empty(t, upEUR.Rates.Currency)
	assert.Zero(t, upEUR.Rates.FxRate)
	assert.Equal(t, eur.BaseLocal, upEUR.BaseLocal)

	current, err := ComputeBreakdown(DefaultConfiguration(), ProductInput{Currency: "USD", ProductPrice: 10})
	require.NoError(t, err)
	assert.Equal(t, current, UpgradeBreakdown(current, Configuration{}))
}
