package pricing

import (
	"math"
	"strings"
)

// minDenominator keeps the processor-fee inversion finite as processorPct
// approaches 1.
const minDenominator = 1e-9

// ComputeBreakdown converts a foreign product price and weight into a final
// consumer price with the full cost, fee and profit breakdown. cfg must have
// passed Validate; the only error is an invalid ProductInput.
//
// Steps run in a fixed order because later amounts compound on earlier ones:
// conversion, fx fee, brand commission, chargeable weight, international
// shipping, customs, import VAT, buffer, cost, required profit, processor
// fee inversion, VAT, domestic shipping, rounding and realized profit.
func ComputeBreakdown(cfg Configuration, in ProductInput) (Breakdown, error) {
	if err := in.Validate(cfg); err != nil {
		return Breakdown{}, err
	}

	code := strings.ToUpper(strings.TrimSpace(in.Currency))
	fx, _ := cfg.rate(code)
	usd, hasUSD := cfg.rate(anchorCurrency)

	price := clampNonNegative(in.ProductPrice)
	vat := clampNonNegative(cfg.VatPct)
	procPct := clampNonNegative(cfg.ProcessorPct)
	procFixed := clampNonNegative(cfg.ProcessorFixedLocal)
	fixedFees := clampNonNegative(cfg.FixedFeesLocal)

	b := Breakdown{Version: BreakdownVersion}

	b.BaseLocal = price * fx
	b.FxCost = b.BaseLocal * clampNonNegative(cfg.FxFeePct)
	b.BrandFee = b.BaseLocal * clampNonNegative(cfg.BrandCommissionPct)

	b.RealWeightKg, b.VolumetricWeightKg, b.ChargeableKg = ChargeableWeight(cfg, in)
	ratePerKg := ShippingRatePerKg(cfg, b.ChargeableKg)
	b.IntlShip = ratePerKg * b.ChargeableKg

	if hasUSD {
		b.DeclaredUSD = price * (fx / usd)
	}
	dutyBase := b.BaseLocal
	if cfg.DutiesBaseIncludesShipping {
		dutyBase += b.IntlShip
	}
	// All-or-nothing above the de-minimis threshold.
	if b.DeclaredUSD > clampNonNegative(cfg.CustomsThresholdUSD) {
		b.CustomsLocal = dutyBase * clampNonNegative(cfg.CustomsPct)
	}

	if !cfg.ImportVatRecoverable {
		b.ImportVatLocal = (b.BaseLocal + fixedFees) * vat
	}
	b.FixedFeesLocal = fixedFees
	b.BufferLocal = (b.BaseLocal + b.IntlShip) * clampNonNegative(cfg.BufferPct)

	b.CostExVat = b.BaseLocal + b.FxCost + b.BrandFee + b.IntlShip + b.FixedFeesLocal +
		b.CustomsLocal + b.ImportVatLocal + b.BufferLocal

	switch cfg.ProfitMode {
	case ProfitModeCommission:
		b.RequiredProfit = b.BaseLocal * clampNonNegative(cfg.CommissionPctOfBase)
	default:
		b.RequiredProfit = b.CostExVat * clampNonNegative(cfg.TargetMarginPct)
	}
	floor := clampNonNegative(cfg.MinProfitFloorLocal)
	b.RequiredBeforeFees = math.Max(b.CostExVat+b.RequiredProfit, b.CostExVat+floor)

	if cfg.ProcessorFeeAppliesToGross {
		denom := math.Max((1+vat)*(1-procPct), minDenominator)
		b.PriceExVat = (b.RequiredBeforeFees*(1+vat) + procFixed) / denom
	} else {
		denom := math.Max(1-procPct, minDenominator)
		b.PriceExVat = (b.RequiredBeforeFees + procFixed) / denom
	}
	b.PriceGross = b.PriceExVat * (1 + vat)

	if b.PriceGross < clampNonNegative(cfg.FreeShippingThresholdLocal) {
		b.DomesticCharge = clampNonNegative(cfg.DomesticShipLocal)
	}
	b.FinalPreRound = b.PriceGross + b.DomesticCharge
	b.FinalPriceLocal = ApplyRounding(cfg.RoundingPolicy, b.FinalPreRound)

	feeBase := b.PriceExVat
	if cfg.ProcessorFeeAppliesToGross {
		feeBase = b.PriceGross
	}
	b.ProcessorFees = feeBase*procPct + procFixed
	b.NetProfit = b.PriceExVat - b.ProcessorFees - b.CostExVat
	if b.FinalPriceLocal > 0 {
		b.ProfitPctOfFinal = b.NetProfit / b.FinalPriceLocal
	}

	b.Rates = Rates{
		LocalCurrency:              cfg.LocalCurrency,
		Currency:                   code,
		FxRate:                     fx,
		UsdRate:                    usd,
		VatPct:                     vat,
		ProcessorPct:               procPct,
		ProcessorFixedLocal:        procFixed,
		ProcessorFeeAppliesToGross: cfg.ProcessorFeeAppliesToGross,
		DomesticShipLocal:          clampNonNegative(cfg.DomesticShipLocal),
		ShippingRatePerKg:          ratePerKg,
		ShippingRateStrategy:       cfg.ShippingRateStrategy,
		ProfitMode:                 cfg.ProfitMode,
		RoundingPolicy:             cfg.RoundingPolicy,
	}

	return b, nil
}
