package pricing

import (
	"fmt"
	"strings"
)

// FeeBase selects which price the payment processor's percentage applies to.
type FeeBase string

const (
	FeeOnGross FeeBase = "gross"
	FeeOnFinal FeeBase = "final"
	FeeOnNet   FeeBase = "net"
)

// ParseFeeBase accepts gross, final or net (case-insensitive).
func ParseFeeBase(s string) (FeeBase, error) {
	switch fb := FeeBase(strings.ToLower(strings.TrimSpace(s))); fb {
	case FeeOnGross, FeeOnFinal, FeeOnNet:
		return fb, nil
	default:
		return "", fmt.Errorf("unknown processor fee base %q", s)
	}
}

// ProfitSnapshot is the flat record ReconcileProfit works on. It does not
// depend on Configuration.
type ProfitSnapshot struct {
	VatPct                     float64 `json:"vat_pct"`
	DomesticVatApplies         bool    `json:"domestic_vat_applies"`
	DomesticChargeToCustomer   float64 `json:"domestic_charge_to_customer"`
	DomesticCostIncludesVat    bool    `json:"domestic_cost_includes_vat"`
	DomesticShipCostLocal      float64 `json:"domestic_ship_cost_local"`
	PriceExVat                 float64 `json:"price_ex_vat"`
	ProcessorFeeOn             FeeBase `json:"processor_fee_on"`
	PriceGross                 float64 `json:"price_gross"`
	FinalPriceLocal            float64 `json:"final_price_local"`
	ProcessorPct               float64 `json:"processor_pct"`
	ProcessorFixedLocal        float64 `json:"processor_fixed_local"`
	CostExVat                  float64 `json:"cost_ex_vat"`
	RefundsAndAdjustmentsExVat float64 `json:"refunds_and_adjustments_ex_vat"`
}

// ProfitResult is the realized margin of one order.
type ProfitResult struct {
	NetProfit       float64 `json:"net_profit"`
	MarginPct       float64 `json:"margin_pct"`
	RevenueExVat    float64 `json:"revenue_ex_vat"`
	ProcessorFees   float64 `json:"processor_fees"`
	TotalCostsExVat float64 `json:"total_costs_ex_vat"`
}

// ReconcileProfit re-derives net profit and margin from a snapshot.
func ReconcileProfit(s ProfitSnapshot) ProfitResult {
	domesticIncomeEx := s.DomesticChargeToCustomer
	if s.DomesticVatApplies {
		domesticIncomeEx = s.DomesticChargeToCustomer / (1 + s.VatPct)
	}
	domesticCostEx := s.DomesticShipCostLocal
	if s.DomesticCostIncludesVat {
		domesticCostEx = s.DomesticShipCostLocal / (1 + s.VatPct)
	}

	revenueEx := s.PriceExVat + domesticIncomeEx

	var feeBase float64
	switch s.ProcessorFeeOn {
	case FeeOnGross:
		feeBase = s.PriceGross
	case FeeOnFinal:
		feeBase = s.FinalPriceLocal
	default:
		feeBase = s.PriceExVat + domesticIncomeEx
	}
	fees := feeBase*s.ProcessorPct + s.ProcessorFixedLocal

	totalCostsEx := s.CostExVat + domesticCostEx + s.RefundsAndAdjustmentsExVat
	net := revenueEx - fees - totalCostsEx

	res := ProfitResult{
		NetProfit:       net,
		RevenueExVat:    revenueEx,
		ProcessorFees:   fees,
		TotalCostsExVat: totalCostsEx,
	}
	if revenueEx > 0 {
		res.MarginPct = net / revenueEx
	}
	return res
}

// ReportingAssumptions are the accounting rules applied when a stored
// breakdown is reconciled. Nil overrides keep the values recorded in the
// breakdown.
type ReportingAssumptions struct {
	ProcessorFeeOn             FeeBase  `json:"processor_fee_on,omitempty"`
	DomesticVatApplies         bool     `json:"domestic_vat_applies"`
	DomesticCostIncludesVat    bool     `json:"domestic_cost_includes_vat"`
	VatPct                     *float64 `json:"vat_pct,omitempty"`
	ProcessorPct               *float64 `json:"processor_pct,omitempty"`
	ProcessorFixedLocal        *float64 `json:"processor_fixed_local,omitempty"`
	DomesticShipCostLocal      *float64 `json:"domestic_ship_cost_local,omitempty"`
	RefundsAndAdjustmentsExVat float64  `json:"refunds_and_adjustments_ex_vat"`
}

// NewProfitSnapshot flattens a stored breakdown under the given assumptions.
// Without an explicit fee base the one recorded at pricing time is used.
func NewProfitSnapshot(b Breakdown, a ReportingAssumptions) ProfitSnapshot {
	s := ProfitSnapshot{
		VatPct:                     b.Rates.VatPct,
		DomesticVatApplies:         a.DomesticVatApplies,
		DomesticChargeToCustomer:   b.DomesticCharge,
		DomesticCostIncludesVat:    a.DomesticCostIncludesVat,
		DomesticShipCostLocal:      b.Rates.DomesticShipLocal,
		PriceExVat:                 b.PriceExVat,
		ProcessorFeeOn:             a.ProcessorFeeOn,
		PriceGross:                 b.PriceGross,
		FinalPriceLocal:            b.FinalPriceLocal,
		ProcessorPct:               b.Rates.ProcessorPct,
		ProcessorFixedLocal:        b.Rates.ProcessorFixedLocal,
		CostExVat:                  b.CostExVat,
		RefundsAndAdjustmentsExVat: a.RefundsAndAdjustmentsExVat,
	}
	if s.ProcessorFeeOn == "" {
		s.ProcessorFeeOn = FeeOnNet
		if b.Rates.ProcessorFeeAppliesToGross {
			s.ProcessorFeeOn = FeeOnGross
		}
	}
	if a.VatPct != nil {
		s.VatPct = *a.VatPct
	}
	if a.ProcessorPct != nil {
		s.ProcessorPct = *a.ProcessorPct
	}
	if a.ProcessorFixedLocal != nil {
		s.ProcessorFixedLocal = *a.ProcessorFixedLocal
	}
	if a.DomesticShipCostLocal != nil {
		s.DomesticShipCostLocal = *a.DomesticShipCostLocal
	}
	return s
}
