package pricing

// BreakdownVersion is bumped whenever the persisted shape changes.
// Version 1 snapshots predate the Rates block.
const BreakdownVersion = 2

// Rates records the assumptions a breakdown was computed under, so a stored
// snapshot stays interpretable after the configuration changes.
type Rates struct {
	LocalCurrency              string               `json:"local_currency"`
	Currency                   string               `json:"currency"`
	FxRate                     float64              `json:"fx_rate"`
	UsdRate                    float64              `json:"usd_rate"`
	VatPct                     float64              `json:"vat_pct"`
	ProcessorPct               float64              `json:"processor_pct"`
	ProcessorFixedLocal        float64              `json:"processor_fixed_local"`
	ProcessorFeeAppliesToGross bool                 `json:"processor_fee_applies_to_gross"`
	DomesticShipLocal          float64              `json:"domestic_ship_local"`
	ShippingRatePerKg          float64              `json:"shipping_rate_per_kg"`
	ShippingRateStrategy       ShippingRateStrategy `json:"shipping_rate_strategy"`
	ProfitMode                 ProfitMode           `json:"profit_mode"`
	RoundingPolicy             RoundingPolicy       `json:"rounding_policy"`
}

// Breakdown is the immutable result of ComputeBreakdown and the persisted
// pricing snapshot of an order. All money is in local currency.
type Breakdown struct {
	Version int   `json:"version"`
	Rates   Rates `json:"rates"`

	BaseLocal float64 `json:"base_local"`
	FxCost    float64 `json:"fx_cost"`
	BrandFee  float64 `json:"brand_fee"`

	RealWeightKg       float64 `json:"real_weight_kg"`
	VolumetricWeightKg float64 `json:"volumetric_weight_kg"`
	ChargeableKg       float64 `json:"chargeable_kg"`
	IntlShip           float64 `json:"intl_ship"`

	DeclaredUSD    float64 `json:"declared_usd"`
	CustomsLocal   float64 `json:"customs_local"`
	ImportVatLocal float64 `json:"import_vat_local"`
	FixedFeesLocal float64 `json:"fixed_fees_local"`
	BufferLocal    float64 `json:"buffer_local"`
	CostExVat      float64 `json:"cost_ex_vat"`

	RequiredProfit     float64 `json:"required_profit"`
	RequiredBeforeFees float64 `json:"required_before_fees"`

	PriceExVat      float64 `json:"price_ex_vat"`
	PriceGross      float64 `json:"price_gross"`
	DomesticCharge  float64 `json:"domestic_charge"`
	FinalPreRound   float64 `json:"final_pre_round"`
	FinalPriceLocal float64 `json:"final_price_local"`

	ProcessorFees    float64 `json:"processor_fees"`
	NetProfit        float64 `json:"net_profit"`
	ProfitPctOfFinal float64 `json:"profit_pct_of_final"`
}

// UpgradeBreakdown brings an older persisted snapshot to the current shape.
// Version 1 records carried no Rates; they are back-filled from fallback,
// which should be the configuration in force when the order was placed.
// The purchase currency and its rate were not recorded and stay empty.
func UpgradeBreakdown(b Breakdown, fallback Configuration) Breakdown {
	if b.Version >= BreakdownVersion {
		return b
	}
	if b.Version <= 1 {
		b.Rates = Rates{
			LocalCurrency:              fallback.LocalCurrency,
			VatPct:                     fallback.VatPct,
			ProcessorPct:               fallback.ProcessorPct,
			ProcessorFixedLocal:        fallback.ProcessorFixedLocal,
			ProcessorFeeAppliesToGross: fallback.ProcessorFeeAppliesToGross,
			DomesticShipLocal:          fallback.DomesticShipLocal,
			ShippingRateStrategy:       fallback.ShippingRateStrategy,
			ProfitMode:                 fallback.ProfitMode,
			RoundingPolicy:             fallback.RoundingPolicy,
		}
		if usd, ok := fallback.rate(anchorCurrency); ok {
			b.Rates.UsdRate = usd
		}
	}
	b.Version = BreakdownVersion
	return b
}
