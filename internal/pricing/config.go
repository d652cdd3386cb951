package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("pricing: invalid configuration")

type ProfitMode string

const (
	ProfitModeTargetMargin ProfitMode = "target_margin"
	ProfitModeCommission   ProfitMode = "commission"
)

type RoundingPolicy string

const (
	RoundNearest10 RoundingPolicy = "nearest10"
	RoundNearest5  RoundingPolicy = "nearest5"
	RoundCeil10    RoundingPolicy = "ceil10"
	RoundNone      RoundingPolicy = "none"
	// RoundInteger is the default: round to the nearest whole unit.
	RoundInteger RoundingPolicy = ""
)

type ShippingRateStrategy string

const (
	ShippingFlatPerKg      ShippingRateStrategy = "flat-per-kg"
	ShippingTieredByWeight ShippingRateStrategy = "tiered-by-weight"
)

const (
	DefaultLocalCurrency     = "ILS"
	DefaultVolumetricDivisor = 5000.0
	anchorCurrency           = "USD"
)

// Configuration holds the tunable parameters of the landed-cost model.
// Percentages are fractions (0.18 means 18%).
type Configuration struct {
	LocalCurrency string             `json:"local_currency"`
	FxRate        map[string]float64 `json:"fx_rate"`
	FxFeePct      float64            `json:"fx_fee_pct"`

	BrandCommissionPct float64 `json:"brand_commission_pct"`

	ShippingRateStrategy   ShippingRateStrategy `json:"shipping_rate_strategy"`
	InternationalRatePerKg float64              `json:"international_rate_per_kg"`
	WeightTiers            []WeightTier         `json:"weight_tiers,omitempty"`
	OuterPackKg            float64              `json:"outer_pack_kg"`
	VolumetricDivisor      float64              `json:"volumetric_divisor"`

	CustomsThresholdUSD        float64 `json:"customs_threshold_usd"`
	CustomsPct                 float64 `json:"customs_pct"`
	DutiesBaseIncludesShipping bool    `json:"duties_base_includes_shipping"`

	VatPct               float64 `json:"vat_pct"`
	ImportVatRecoverable bool    `json:"import_vat_recoverable"`

	FixedFeesLocal float64 `json:"fixed_fees_local"`
	BufferPct      float64 `json:"buffer_pct"`

	DomesticShipLocal          float64 `json:"domestic_ship_local"`
	FreeShippingThresholdLocal float64 `json:"free_shipping_threshold_local"`

	ProfitMode          ProfitMode `json:"profit_mode"`
	TargetMarginPct     float64    `json:"target_margin_pct"`
	CommissionPctOfBase float64    `json:"commission_pct_of_base"`
	MinProfitFloorLocal float64    `json:"min_profit_floor_local"`

	ProcessorPct               float64 `json:"processor_pct"`
	ProcessorFixedLocal        float64 `json:"processor_fixed_local"`
	ProcessorFeeAppliesToGross bool    `json:"processor_fee_applies_to_gross"`

	RoundingPolicy RoundingPolicy `json:"rounding_policy"`
}

// DefaultConfiguration mirrors the values the business ran with before
// settings became editable.
func DefaultConfiguration() Configuration {
	return Configuration{
		LocalCurrency: DefaultLocalCurrency,
		FxRate: map[string]float64{
			"USD": 3.7,
			"EUR": 4.0,
			"GBP": 4.7,
		},
		FxFeePct:                   0.027,
		ShippingRateStrategy:       ShippingFlatPerKg,
		InternationalRatePerKg:     70,
		WeightTiers:                DefaultWeightTiers(),
		OuterPackKg:                0.3,
		VolumetricDivisor:          DefaultVolumetricDivisor,
		CustomsThresholdUSD:        75,
		CustomsPct:                 0.12,
		DutiesBaseIncludesShipping: true,
		VatPct:                     0.18,
		FixedFeesLocal:             50,
		BufferPct:                  0.05,
		DomesticShipLocal:          30,
		FreeShippingThresholdLocal: 399,
		ProfitMode:                 ProfitModeTargetMargin,
		TargetMarginPct:            0.10,
		CommissionPctOfBase:        0.15,
		MinProfitFloorLocal:        40,
		ProcessorPct:               0.025,
		ProcessorFixedLocal:        1.2,
		RoundingPolicy:             RoundNearest10,
	}
}

// Clone returns a deep copy so callers can edit maps and tiers freely.
func (c Configuration) Clone() Configuration {
	out := c
	if c.FxRate != nil {
		out.FxRate = make(map[string]float64, len(c.FxRate))
		for k, v := range c.FxRate {
			out.FxRate[k] = v
		}
	}
	if c.WeightTiers != nil {
		out.WeightTiers = append([]WeightTier(nil), c.WeightTiers...)
	}
	return out
}

// Normalize coerces non-finite numbers to their defaults and canonicalises
// currency codes. It never fails; Validate decides what is acceptable.
func (c Configuration) Normalize() Configuration {
	def := DefaultConfiguration()
	out := c.Clone()

	out.LocalCurrency = strings.ToUpper(strings.TrimSpace(out.LocalCurrency))
	if out.LocalCurrency == "" {
		out.LocalCurrency = def.LocalCurrency
	}
	if out.FxRate != nil {
		rates := make(map[string]float64, len(out.FxRate))
		for code, rate := range out.FxRate {
			rates[strings.ToUpper(strings.TrimSpace(code))] = finiteOr(rate, 0)
		}
		out.FxRate = rates
	}
	if out.ShippingRateStrategy == "" {
		out.ShippingRateStrategy = def.ShippingRateStrategy
	}
	if out.ProfitMode == "" {
		out.ProfitMode = def.ProfitMode
	}
	if len(out.WeightTiers) == 0 {
		out.WeightTiers = DefaultWeightTiers()
	}
	for i := range out.WeightTiers {
		out.WeightTiers[i].UpToKg = finiteOr(out.WeightTiers[i].UpToKg, 0)
		out.WeightTiers[i].RatePerKg = finiteOr(out.WeightTiers[i].RatePerKg, 0)
	}

	out.FxFeePct = finiteOr(out.FxFeePct, def.FxFeePct)
	out.BrandCommissionPct = finiteOr(out.BrandCommissionPct, 0)
	out.InternationalRatePerKg = finiteOr(out.InternationalRatePerKg, def.InternationalRatePerKg)
	out.OuterPackKg = finiteOr(out.OuterPackKg, def.OuterPackKg)
	out.VolumetricDivisor = finiteOr(out.VolumetricDivisor, def.VolumetricDivisor)
	if out.VolumetricDivisor == 0 {
		out.VolumetricDivisor = def.VolumetricDivisor
	}
	out.CustomsThresholdUSD = finiteOr(out.CustomsThresholdUSD, def.CustomsThresholdUSD)
	out.CustomsPct = finiteOr(out.CustomsPct, def.CustomsPct)
	out.VatPct = finiteOr(out.VatPct, def.VatPct)
	out.FixedFeesLocal = finiteOr(out.FixedFeesLocal, def.FixedFeesLocal)
	out.BufferPct = finiteOr(out.BufferPct, def.BufferPct)
	out.DomesticShipLocal = finiteOr(out.DomesticShipLocal, def.DomesticShipLocal)
	out.FreeShippingThresholdLocal = finiteOr(out.FreeShippingThresholdLocal, def.FreeShippingThresholdLocal)
	out.TargetMarginPct = finiteOr(out.TargetMarginPct, def.TargetMarginPct)
	out.CommissionPctOfBase = finiteOr(out.CommissionPctOfBase, def.CommissionPctOfBase)
	out.MinProfitFloorLocal = finiteOr(out.MinProfitFloorLocal, def.MinProfitFloorLocal)
	out.ProcessorPct = finiteOr(out.ProcessorPct, def.ProcessorPct)
	out.ProcessorFixedLocal = finiteOr(out.ProcessorFixedLocal, def.ProcessorFixedLocal)

	return out
}

// ConfigError lists every problem found in a configuration.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pricing: invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Validate checks the bounds the calculator relies on. A configuration that
// passes Validate never makes ComputeBreakdown fail.
func (c Configuration) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	fractions := []struct {
		name  string
		value float64
	}{
		{"fx_fee_pct", c.FxFeePct},
		{"brand_commission_pct", c.BrandCommissionPct},
		{"customs_pct", c.CustomsPct},
		{"vat_pct", c.VatPct},
		{"buffer_pct", c.BufferPct},
		{"target_margin_pct", c.TargetMarginPct},
		{"commission_pct_of_base", c.CommissionPctOfBase},
		{"processor_pct", c.ProcessorPct},
	}
	for _, f := range fractions {
		if !isFinite(f.value) || f.value < 0 || f.value > 1 {
			addf("%s must be a fraction in [0,1], got %v", f.name, f.value)
		}
	}

	amounts := []struct {
		name  string
		value float64
	}{
		{"international_rate_per_kg", c.InternationalRatePerKg},
		{"outer_pack_kg", c.OuterPackKg},
		{"customs_threshold_usd", c.CustomsThresholdUSD},
		{"fixed_fees_local", c.FixedFeesLocal},
		{"domestic_ship_local", c.DomesticShipLocal},
		{"free_shipping_threshold_local", c.FreeShippingThresholdLocal},
		{"min_profit_floor_local", c.MinProfitFloorLocal},
		{"processor_fixed_local", c.ProcessorFixedLocal},
	}
	for _, a := range amounts {
		if !isFinite(a.value) || a.value < 0 {
			addf("%s must be non-negative, got %v", a.name, a.value)
		}
	}

	if !isFinite(c.VolumetricDivisor) || c.VolumetricDivisor <= 0 {
		addf("volumetric_divisor must be positive, got %v", c.VolumetricDivisor)
	}

	if strings.TrimSpace(c.LocalCurrency) == "" {
		addf("local_currency is required")
	}
	codes := make([]string, 0, len(c.FxRate))
	for code := range c.FxRate {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if rate := c.FxRate[code]; !isFinite(rate) || rate <= 0 {
			addf("fx_rate[%s] must be positive, got %v", code, rate)
		}
	}
	if _, ok := c.rate(anchorCurrency); !ok {
		addf("fx_rate[%s] is required as the customs anchor", anchorCurrency)
	}

	switch c.ProfitMode {
	case ProfitModeTargetMargin, ProfitModeCommission:
	default:
		addf("unknown profit_mode %q", c.ProfitMode)
	}

	switch c.RoundingPolicy {
	case RoundNearest10, RoundNearest5, RoundCeil10, RoundNone, RoundInteger:
	default:
		addf("unknown rounding_policy %q", c.RoundingPolicy)
	}

	switch c.ShippingRateStrategy {
	case ShippingFlatPerKg:
	case ShippingTieredByWeight:
		if err := validateTiers(c.WeightTiers); err != nil {
			addf("%v", err)
		}
	default:
		addf("unknown shipping_rate_strategy %q", c.ShippingRateStrategy)
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// rate returns the local-currency value of one unit of code. The local
// currency is always 1 unless explicitly configured.
func (c Configuration) rate(code string) (float64, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if r, ok := c.FxRate[code]; ok && r > 0 && isFinite(r) {
		return r, true
	}
	if code != "" && code == strings.ToUpper(c.LocalCurrency) {
		return 1, true
	}
	return 0, false
}

// SupportsCurrency reports whether code can be priced.
func (c Configuration) SupportsCurrency(code string) bool {
	_, ok := c.rate(code)
	return ok
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, def float64) float64 {
	if isFinite(v) {
		return v
	}
	return def
}

func clampNonNegative(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}
