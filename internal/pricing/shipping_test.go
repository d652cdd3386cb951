package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCeilToHalf(t *testing.T) {
	t.Parallel()

	tests := map[float64]float64{
		-1:   0,
		0:    0,
		0.01: 0.5,
		0.5:  0.5,
		0.7:  1.0,
		1.0:  1.0,
		1.01: 1.5,
		2.49: 2.5,
	}
	for in, want := range tests {
		assert.Equalf(t, want, CeilToHalf(in), "CeilToHalf(%v)", in)
	}
}

func TestChargeableWeight(t *testing.T) {
	t.Parallel()

	cfg := exampleConfig()

	realKg, volKg, chargeable := ChargeableWeight(cfg, ProductInput{WeightKg: 0.4})
	assert.InDelta(t, 0.7, realKg, tolerance)
	assert.Zero(t, volKg)
	assert.Equal(t, 1.0, chargeable)

	_, volKg, chargeable = ChargeableWeight(cfg, ProductInput{WeightKg: 0.4, DimensionsCm: &Dimensions{L: 50, W: 40, H: 30}})
	assert.InDelta(t, 12, volKg, tolerance)
	assert.Equal(t, 12.0, chargeable)

	cfg.VolumetricDivisor = 6000
	_, volKg, _ = ChargeableWeight(cfg, ProductInput{DimensionsCm: &Dimensions{L: 50, W: 40, H: 30}})
	assert.InDelta(t, 10, volKg, tolerance)
}

func TestShippingRatePerKg(t *testing.T) {
	t.Parallel()

	cfg := exampleConfig()
	assert.Equal(t, 70.0, ShippingRatePerKg(cfg, 12))

	cfg.ShippingRateStrategy = ShippingTieredByWeight
	cfg.WeightTiers = DefaultWeightTiers()
	tests := []struct {
		kg   float64
		want float64
	}{
		{0.5, 55},
		{2.5, 55},
		{3, 42},
		{4.5, 42},
		{5, 32},
		{20, 32},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.want, ShippingRatePerKg(cfg, tc.kg), "%.1f kg", tc.kg)
	}
}

func TestComputeBreakdown_TieredShipping(t *testing.T) {
	t.Parallel()

	cfg := exampleConfig()
	cfg.ShippingRateStrategy = ShippingTieredByWeight
	cfg.WeightTiers = DefaultWeightTiers()

	b, err := ComputeBreakdown(cfg, ProductInput{Currency: "EUR", ProductPrice: 40, WeightKg: 3.1})
	if err != nil {
		t.Fatalf("ComputeBreakdown failed: %v", err)
	}
	assert.Equal(t, 3.5, b.ChargeableKg)
	assert.InDelta(t, 3.5*42, b.IntlShip, tolerance)
	assert.Equal(t, ShippingTieredByWeight, b.Rates.ShippingRateStrategy)
}

func TestApplyRounding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy RoundingPolicy
		in     float64
		want   float64
	}{
		{RoundNearest10, 514.48, 510},
		{RoundNearest10, 515, 520},
		{RoundNearest5, 512.4, 510},
		{RoundNearest5, 512.5, 515},
		{RoundCeil10, 510.01, 520},
		{RoundCeil10, 510, 510},
		{RoundNone, 514.48, 514.48},
		{RoundInteger, 514.48, 514},
		{RoundInteger, 514.5, 515},
		{"bogus", 514.6, 515},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.want, ApplyRounding(tc.policy, tc.in), "%q(%v)", tc.policy, tc.in)
	}
}
