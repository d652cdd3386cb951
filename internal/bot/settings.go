package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"landed-bot/internal/pricing"
)

type settingSetter func(cfg *pricing.Configuration, value string) error

func floatSetting(field func(cfg *pricing.Configuration) *float64) settingSetter {
	return func(cfg *pricing.Configuration, value string) error {
		v, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", value)
		}
		*field(cfg) = v
		return nil
	}
}

func boolSetting(field func(cfg *pricing.Configuration) *bool) settingSetter {
	return func(cfg *pricing.Configuration, value string) error {
		v, err := parseYesNo(value)
		if err != nil {
			return err
		}
		*field(cfg) = v
		return nil
	}
}

// Range checks happen in Configuration.Validate when the result is saved.
var settingSetters = map[string]settingSetter{
	"fx_fee_pct":                    floatSetting(func(c *pricing.Configuration) *float64 { return &c.FxFeePct }),
	"brand_commission_pct":          floatSetting(func(c *pricing.Configuration) *float64 { return &c.BrandCommissionPct }),
	"international_rate_per_kg":     floatSetting(func(c *pricing.Configuration) *float64 { return &c.InternationalRatePerKg }),
	"outer_pack_kg":                 floatSetting(func(c *pricing.Configuration) *float64 { return &c.OuterPackKg }),
	"volumetric_divisor":            floatSetting(func(c *pricing.Configuration) *float64 { return &c.VolumetricDivisor }),
	"customs_threshold_usd":         floatSetting(func(c *pricing.Configuration) *float64 { return &c.CustomsThresholdUSD }),
	"customs_pct":                   floatSetting(func(c *pricing.Configuration) *float64 { return &c.CustomsPct }),
	"vat_pct":                       floatSetting(func(c *pricing.Configuration) *float64 { return &c.VatPct }),
	"fixed_fees_local":              floatSetting(func(c *pricing.Configuration) *float64 { return &c.FixedFeesLocal }),
	"buffer_pct":                    floatSetting(func(c *pricing.Configuration) *float64 { return &c.BufferPct }),
	"domestic_ship_local":           floatSetting(func(c *pricing.Configuration) *float64 { return &c.DomesticShipLocal }),
	"free_shipping_threshold_local": floatSetting(func(c *pricing.Configuration) *float64 { return &c.FreeShippingThresholdLocal }),
	"target_margin_pct":             floatSetting(func(c *pricing.Configuration) *float64 { return &c.TargetMarginPct }),
	"commission_pct_of_base":        floatSetting(func(c *pricing.Configuration) *float64 { return &c.CommissionPctOfBase }),
	"min_profit_floor_local":        floatSetting(func(c *pricing.Configuration) *float64 { return &c.MinProfitFloorLocal }),
	"processor_pct":                 floatSetting(func(c *pricing.Configuration) *float64 { return &c.ProcessorPct }),
	"processor_fixed_local":         floatSetting(func(c *pricing.Configuration) *float64 { return &c.ProcessorFixedLocal }),

	"duties_base_includes_shipping":  boolSetting(func(c *pricing.Configuration) *bool { return &c.DutiesBaseIncludesShipping }),
	"import_vat_recoverable":         boolSetting(func(c *pricing.Configuration) *bool { return &c.ImportVatRecoverable }),
	"processor_fee_applies_to_gross": boolSetting(func(c *pricing.Configuration) *bool { return &c.ProcessorFeeAppliesToGross }),

	"profit_mode": func(c *pricing.Configuration, v string) error {
		c.ProfitMode = pricing.ProfitMode(strings.ToLower(v))
		return nil
	},
	"rounding_policy": func(c *pricing.Configuration, v string) error {
		c.RoundingPolicy = pricing.RoundingPolicy(strings.ToLower(v))
		return nil
	},
	"shipping_rate_strategy": func(c *pricing.Configuration, v string) error {
		c.ShippingRateStrategy = pricing.ShippingRateStrategy(strings.ToLower(v))
		return nil
	},
	"weight_tiers": func(c *pricing.Configuration, v string) error {
		tiers, err := parseWeightTiers(v)
		if err != nil {
			return err
		}
		c.WeightTiers = tiers
		return nil
	},
}

// settingKeys lists what /set accepts, for help output.
func settingKeys() []string {
	keys := make([]string, 0, len(settingSetters)+1)
	for k := range settingSetters {
		keys = append(keys, k)
	}
	keys = append(keys, "fx.<CODE>")
	sort.Strings(keys)
	return keys
}

// applySetting changes one named field. "fx.EUR" edits a single rate.
func applySetting(cfg *pricing.Configuration, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("missing value for %s", key)
	}

	if code, ok := strings.CutPrefix(key, "fx."); ok {
		rate, err := parseAmount(value)
		if err != nil {
			return err
		}
		if cfg.FxRate == nil {
			cfg.FxRate = make(map[string]float64)
		}
		cfg.FxRate[strings.ToUpper(code)] = rate
		return nil
	}

	set, ok := settingSetters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	return set(cfg, value)
}

// parseWeightTiers reads "3:55,5:42,0:32" where 0 marks the open-ended tier.
func parseWeightTiers(s string) ([]pricing.WeightTier, error) {
	var tiers []pricing.WeightTier
	for _, part := range strings.Split(s, ",") {
		upTo, rate, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("tier must look like upToKg:ratePerKg, got %q", part)
		}
		kg, err := parseAmount(upTo)
		if err != nil {
			return nil, fmt.Errorf("tier weight: %w", err)
		}
		r, err := parseAmount(rate)
		if err != nil {
			return nil, fmt.Errorf("tier rate: %w", err)
		}
		tiers = append(tiers, pricing.WeightTier{UpToKg: kg, RatePerKg: r})
	}
	return tiers, nil
}
