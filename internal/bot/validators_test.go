package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landed-bot/internal/pricing"
	"landed-bot/internal/report"
)

func TestParseOrderLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want pricing.OrderLine
	}{
		{
			name: "price only",
			in:   "eur 50",
			want: pricing.OrderLine{Currency: "EUR", UnitPrice: 50, Quantity: 1},
		},
		{
			name: "full line",
			in:   "USD 49,90 0.4kg 30x20x10 *2 sku=BAG-1",
			want: pricing.OrderLine{
				SKU:          "BAG-1",
				Currency:     "USD",
				UnitPrice:    49.9,
				Quantity:     2,
				UnitWeightKg: 0.4,
				DimensionsCm: &pricing.Dimensions{L: 30, W: 20, H: 10},
			},
		},
		{
			name: "any order after price",
			in:   "GBP 12 *3 25×10×5 1.2",
			want: pricing.OrderLine{
				Currency:     "GBP",
				UnitPrice:    12,
				Quantity:     3,
				UnitWeightKg: 1.2,
				DimensionsCm: &pricing.Dimensions{L: 25, W: 10, H: 5},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOrderLine(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseOrderLine_Errors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"EUR",
		"EURO 50",
		"EUR abc",
		"EUR -5",
		"EUR 50 0.4 0.5",
		"EUR 50 *0",
		"EUR 50 *two",
		"EUR 50 30x20",
		"EUR 50 30xAx10",
	} {
		_, err := ParseOrderLine(in)
		assert.Errorf(t, err, "%q should be rejected", in)
	}
}

func TestParseProductInput(t *testing.T) {
	t.Parallel()

	in, err := ParseProductInput("EUR 20 0.3 *2 30x20x10")
	require.NoError(t, err)
	assert.Equal(t, "EUR", in.Currency)
	assert.InDelta(t, 40, in.ProductPrice, 1e-9)
	assert.InDelta(t, 0.6, in.WeightKg, 1e-9)
	assert.Nil(t, in.DimensionsCm, "volumetric weight only applies to a single unit")

	single, err := ParseProductInput("EUR 20 0.3 30x20x10")
	require.NoError(t, err)
	require.NotNil(t, single.DimensionsCm)
}

func TestParseFxRates(t *testing.T) {
	t.Parallel()

	rates, err := ParseFxRates("eur=4.05 USD:3.6")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"EUR": 4.05, "USD": 3.6}, rates)

	for _, in := range []string{"", "EUR", "EUR=0", "EURO=4", "EUR=x"} {
		_, err := ParseFxRates(in)
		assert.Errorf(t, err, "%q should be rejected", in)
	}
}

func TestParseAssumptions(t *testing.T) {
	t.Parallel()

	a, err := ParseAssumptions([]string{"fee=final", "domvat=yes", "domincl=on", "vat=0.17", "proc=0.03", "procfix=1.5", "ship=25", "refund=40"})
	require.NoError(t, err)
	assert.Equal(t, pricing.FeeOnFinal, a.ProcessorFeeOn)
	assert.True(t, a.DomesticVatApplies)
	assert.True(t, a.DomesticCostIncludesVat)
	require.NotNil(t, a.VatPct)
	assert.Equal(t, 0.17, *a.VatPct)
	require.NotNil(t, a.ProcessorPct)
	assert.Equal(t, 0.03, *a.ProcessorPct)
	require.NotNil(t, a.ProcessorFixedLocal)
	assert.Equal(t, 1.5, *a.ProcessorFixedLocal)
	require.NotNil(t, a.DomesticShipCostLocal)
	assert.Equal(t, 25.0, *a.DomesticShipCostLocal)
	assert.Equal(t, 40.0, a.RefundsAndAdjustmentsExVat)

	empty, err := ParseAssumptions(nil)
	require.NoError(t, err)
	assert.Equal(t, pricing.ReportingAssumptions{}, empty)

	for _, tok := range []string{"fee=tips", "vat=18", "domvat=maybe", "color=red", "refund"} {
		_, err := ParseAssumptions([]string{tok})
		assert.Errorf(t, err, "%q should be rejected", tok)
	}
}

func TestParseReportArgs(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 15, 13, 30, 0, 0, time.UTC)

	def, err := ParseReportArgs("", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), def.From)
	assert.Equal(t, time.Date(2024, time.March, 16, 0, 0, 0, 0, time.UTC), def.To)
	assert.Equal(t, report.PeriodDay, def.Period)

	got, err := ParseReportArgs("2024-01-01 2024-02-29 month fee=gross", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), got.From)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), got.To)
	assert.Equal(t, report.PeriodMonth, got.Period)
	assert.Equal(t, pricing.FeeOnGross, got.Assumptions.ProcessorFeeOn)

	from, err := ParseReportArgs("2024-03-01 week", now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), from.From)
	assert.Equal(t, def.To, from.To)
	assert.Equal(t, report.PeriodWeek, from.Period)

	_, err = ParseReportArgs("2024-03-10 2024-03-01", now, time.UTC)
	require.Error(t, err)

	_, err = ParseReportArgs("2024-01-01 2024-01-02 2024-01-03", now, time.UTC)
	require.Error(t, err)

	_, err = ParseReportArgs("bogus", now, time.UTC)
	require.Error(t, err)
}

func TestParseOrderID(t *testing.T) {
	t.Parallel()

	id, err := parseOrderID("#42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, in := range []string{"", "0", "-1", "abc"} {
		_, err := parseOrderID(in)
		assert.Errorf(t, err, "%q should be rejected", in)
	}
}
