package pricing

import (
	"fmt"
	"math"
)

// WeightTier charges RatePerKg for chargeable weights below UpToKg.
// A zero UpToKg marks the open-ended last tier.
type WeightTier struct {
	UpToKg    float64 `json:"up_to_kg"`
	RatePerKg float64 `json:"rate_per_kg"`
}

// DefaultWeightTiers is the simple courier table: 55/kg under 3kg,
// 42/kg from 3 to 5kg, 32/kg from 5kg.
func DefaultWeightTiers() []WeightTier {
	return []WeightTier{
		{UpToKg: 3, RatePerKg: 55},
		{UpToKg: 5, RatePerKg: 42},
		{UpToKg: 0, RatePerKg: 32},
	}
}

func validateTiers(tiers []WeightTier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("weight_tiers must not be empty for tiered shipping")
	}
	prev := 0.0
	for i, t := range tiers {
		if !isFinite(t.RatePerKg) || t.RatePerKg < 0 {
			return fmt.Errorf("weight_tiers[%d].rate_per_kg must be non-negative", i)
		}
		last := i == len(tiers)-1
		if t.UpToKg == 0 {
			if !last {
				return fmt.Errorf("weight_tiers[%d] is open-ended but not last", i)
			}
			continue
		}
		if !isFinite(t.UpToKg) || t.UpToKg <= prev {
			return fmt.Errorf("weight_tiers[%d].up_to_kg must increase", i)
		}
		prev = t.UpToKg
	}
	return nil
}

// VolumetricWeight uses the carrier convention L×W×H / divisor.
func VolumetricWeight(d *Dimensions, divisor float64) float64 {
	if d == nil || divisor <= 0 {
		return 0
	}
	return clampNonNegative(d.L) * clampNonNegative(d.W) * clampNonNegative(d.H) / divisor
}

// CeilToHalf rounds up to the next 0.5 increment. Zero and negative yield 0.
func CeilToHalf(kg float64) float64 {
	if !isFinite(kg) || kg <= 0 {
		return 0
	}
	return math.Ceil(kg*2) / 2
}

// ChargeableWeight returns the real (item + outer packaging), volumetric and
// billed weights for in.
func ChargeableWeight(cfg Configuration, in ProductInput) (realKg, volumetricKg, chargeableKg float64) {
	realKg = clampNonNegative(in.WeightKg) + clampNonNegative(cfg.OuterPackKg)
	volumetricKg = VolumetricWeight(in.DimensionsCm, cfg.VolumetricDivisor)
	return realKg, volumetricKg, CeilToHalf(math.Max(realKg, volumetricKg))
}

// ShippingRatePerKg selects the per-kg rate under the configured strategy.
func ShippingRatePerKg(cfg Configuration, chargeableKg float64) float64 {
	if cfg.ShippingRateStrategy != ShippingTieredByWeight {
		return clampNonNegative(cfg.InternationalRatePerKg)
	}
	tiers := cfg.WeightTiers
	if len(tiers) == 0 {
		tiers = DefaultWeightTiers()
	}
	for _, t := range tiers {
		if t.UpToKg == 0 || chargeableKg < t.UpToKg {
			return clampNonNegative(t.RatePerKg)
		}
	}
	return clampNonNegative(tiers[len(tiers)-1].RatePerKg)
}
