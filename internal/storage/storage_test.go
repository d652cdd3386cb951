package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landed-bot/internal/pricing"
)

func TestDecodeBreakdown_UpgradesLegacySnapshot(t *testing.T) {
	t.Parallel()

	legacy := []byte(`{"version":1,"price_ex_vat":436,"cost_ex_vat":383.9,"final_price_local":510}`)

	calls := 0
	fallback := func() pricing.Configuration {
		calls++
		return pricing.DefaultConfiguration()
	}

	b, err := decodeBreakdown(legacy, fallback)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, pricing.BreakdownVersion, b.Version)
	assert.Equal(t, 0.18, b.Rates.VatPct)
	assert.Equal(t, "ILS", b.Rates.Currency)
	assert.Equal(t, 510.0, b.FinalPriceLocal)
}

func TestDecodeBreakdown_CurrentVersionSkipsFallback(t *testing.T) {
	t.Parallel()

	current, err := pricing.ComputeBreakdown(pricing.DefaultConfiguration(), pricing.ProductInput{Currency: "EUR", ProductPrice: 50, WeightKg: 0.4})
	require.NoError(t, err)
	data, err := json.Marshal(current)
	require.NoError(t, err)

	b, err := decodeBreakdown(data, func() pricing.Configuration {
		t.Fatal("fallback must not be consulted for current snapshots")
		return pricing.Configuration{}
	})
	require.NoError(t, err)
	assert.Equal(t, current, b)
}

func TestDecodeBreakdown_Garbage(t *testing.T) {
	t.Parallel()

	_, err := decodeBreakdown([]byte(`{`), pricing.DefaultConfiguration)
	require.Error(t, err)
}

func TestDecodeSettings(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(pricing.DefaultConfiguration())
	require.NoError(t, err)

	cfg, err := decodeSettings(data)
	require.NoError(t, err)
	assert.Equal(t, pricing.DefaultConfiguration(), cfg)

	bad := pricing.DefaultConfiguration()
	bad.VatPct = 3
	data, err = json.Marshal(bad)
	require.NoError(t, err)

	_, err = decodeSettings(data)
	require.ErrorIs(t, err, pricing.ErrInvalidConfig)
}

func TestMergeFxRates(t *testing.T) {
	t.Parallel()

	cfg := pricing.DefaultConfiguration()
	mergeFxRates(&cfg, map[string]float64{"eur": 4.05, " gbp ": 4.8, "ILS": 1.5, "": 2, "CHF": 4.2})

	assert.Equal(t, 4.05, cfg.FxRate["EUR"])
	assert.Equal(t, 4.8, cfg.FxRate["GBP"])
	assert.Equal(t, 4.2, cfg.FxRate["CHF"])
	assert.Equal(t, 3.7, cfg.FxRate["USD"])
	assert.NotContains(t, cfg.FxRate, "ILS")
	assert.NotContains(t, cfg.FxRate, "")
}

func TestOrderRowToOrder(t *testing.T) {
	t.Parallel()

	b, err := pricing.ComputeBreakdown(pricing.DefaultConfiguration(), pricing.ProductInput{Currency: "USD", ProductPrice: 30})
	require.NoError(t, err)
	bd, err := json.Marshal(b)
	require.NoError(t, err)

	row := orderRow{
		ID:        7,
		Currency:  "USD",
		Lines:     []byte(`[{"sku":"A-1","currency":"USD","unit_price":30,"quantity":1}]`),
		Status:    "new",
		Breakdown: bd,
	}
	row.ExternalRef.String, row.ExternalRef.Valid = "shop-7", true

	order, err := row.toOrder(pricing.DefaultConfiguration)
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.ID)
	assert.Equal(t, "shop-7", order.ExternalRef)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "A-1", order.Lines[0].SKU)
	assert.Equal(t, b, order.Breakdown)

	row.Breakdown = nil
	order, err = row.toOrder(pricing.DefaultConfiguration)
	require.NoError(t, err)
	assert.Zero(t, order.Breakdown.Version)
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pq.Error{Code: uniqueViolation})))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestNullString(t *testing.T) {
	t.Parallel()

	assert.False(t, nullString("").Valid)
	assert.Equal(t, "x", nullString("x").String)
}
