package bot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landed-bot/internal/orders"
	"landed-bot/internal/pricing"
	"landed-bot/internal/report"
	"landed-bot/internal/storage"
)

func TestMoneyGroupsThousands(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1,234.50", money(1234.5))
	assert.Equal(t, "510.00", money(510))
	assert.Equal(t, "-40.00", money(-40))
	assert.Equal(t, "12,345.68", moneyDec(decimal.RequireFromString("12345.678")))
	assert.Equal(t, "10.0%", pct(0.1))
}

func TestFormatBreakdown(t *testing.T) {
	t.Parallel()

	b, err := pricing.ComputeBreakdown(pricing.DefaultConfiguration(), pricing.ProductInput{Currency: "EUR", ProductPrice: 50, WeightKg: 0.4})
	require.NoError(t, err)

	text := FormatBreakdown(b)
	assert.Contains(t, text, "Final price: "+money(b.FinalPriceLocal)+" ILS")
	assert.Contains(t, text, "EUR @ 4.0000")
	assert.Contains(t, text, "Net profit: "+money(b.NetProfit))
	assert.NotContains(t, text, "loses money")

	b.NetProfit = -5
	assert.Contains(t, FormatBreakdown(b), "loses money")
}

func TestFormatBreakdown_UnknownPurchaseRate(t *testing.T) {
	t.Parallel()

	legacy := pricing.Breakdown{Version: 1, BaseLocal: 200, FinalPriceLocal: 410}
	b := pricing.UpgradeBreakdown(legacy, pricing.DefaultConfiguration())

	text := FormatBreakdown(b)
	assert.Contains(t, text, "Base: "+money(200)+"\n")
	assert.NotContains(t, text, "@")
}

func TestFormatOrder(t *testing.T) {
	t.Parallel()

	order := storage.Order{
		ID:        12,
		Status:    "new",
		Customer:  "Dana <VIP>",
		Lines:     []pricing.OrderLine{{SKU: "A-1", Currency: "EUR", UnitPrice: 20, Quantity: 2, UnitWeightKg: 0.3}},
		CreatedAt: time.Date(2024, time.March, 4, 10, 5, 0, 0, time.UTC),
	}

	text := FormatOrder(order)
	assert.Contains(t, text, "Order #12")
	assert.Contains(t, text, "Dana &lt;VIP&gt;")
	assert.Contains(t, text, "1. EUR 20.00 × 2 [A-1], 0.30 kg")
	assert.Contains(t, text, "04.03.2024 10:05")
	assert.NotContains(t, text, "Final price", "unpriced orders have no breakdown")
}

func TestFormatPeriodReport(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	totals := report.Totals{
		Orders:       2,
		RevenueExVat: decimal.NewFromInt(1000),
		NetProfit:    decimal.NewFromInt(120),
		LossOrders:   1,
	}
	rep := report.PeriodReport{
		From:      start,
		To:        start.AddDate(0, 0, 7),
		Period:    report.PeriodWeek,
		Buckets:   []report.Bucket{{Start: start, End: start.AddDate(0, 0, 7), Totals: totals}},
		Total:     totals,
		Cancelled: 3,
	}

	text := FormatPeriodReport(rep)
	assert.Contains(t, text, "04.03.2024 – 10.03.2024")
	assert.Contains(t, text, "w/c 04.03: 2 orders, revenue 1,000.00, profit 120.00")
	assert.Contains(t, text, "12.0% margin")
	assert.Contains(t, text, "1 orders at a loss")
	assert.Contains(t, text, "Cancelled (excluded): 3")

	rep.Buckets = nil
	assert.Contains(t, FormatPeriodReport(rep), "No orders")
}

func TestFormatSettings(t *testing.T) {
	t.Parallel()

	text := FormatSettings(pricing.DefaultConfiguration())
	assert.Contains(t, text, "EUR 4.0000, GBP 4.7000, USD 3.7000")
	assert.Contains(t, text, "vat_pct: 18.0%")
	assert.Contains(t, text, "rounding_policy: nearest10")
	assert.Contains(t, text, "rest 32.00")
}

func TestFormatStats(t *testing.T) {
	t.Parallel()

	text := FormatStats(&storage.OrderStatistics{
		TotalOrders:  3,
		TotalRevenue: 1530,
		StatusCounts: map[string]int{"new": 2, "cancelled": 1},
	})
	assert.Contains(t, text, "Total revenue: 1,530.00")
	assert.Contains(t, text, "• cancelled: 1\n• new: 2")
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
		ok   bool
	}{
		{&pricing.InvalidInputError{Field: "currency", Reason: `"JPY" is not supported`}, `Invalid currency: "JPY" is not supported`, true},
		{fmt.Errorf("aggregate: %w", pricing.ErrCurrencyMismatch), "All lines of an order must use the same currency", true},
		{fmt.Errorf("storage.GetOrder: %w", storage.ErrNotFound), "Order not found", true},
		{fmt.Errorf("order 3: %w", orders.ErrOrderClosed), "The order is closed and can no longer be changed", true},
		{errors.New("connection refused"), "", false},
	}
	for _, tc := range tests {
		got, ok := userMessage(tc.err)
		assert.Equal(t, tc.ok, ok)
		assert.Equal(t, tc.want, got)
	}
}

func TestFormatOrderList(t *testing.T) {
	assert.Equal(t, "No orders yet.", FormatOrderList(nil))

	text := FormatOrderList([]storage.Order{
		{ID: 3, Status: "new", Customer: "Dana <VIP>", CreatedAt: time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC),
			Breakdown: pricing.Breakdown{Version: pricing.BreakdownVersion, FinalPriceLocal: 1510}},
		{ID: 2, Status: "shipped", CreatedAt: time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)},
	})
	assert.Contains(t, text, "#3 · new · 05.03 09:30 · Dana &lt;VIP&gt; · 1,510.00")
	assert.Contains(t, text, "#2 · shipped · 04.03 18:00")
}

func TestFormatSnapshotHistory(t *testing.T) {
	assert.Equal(t, "Order #9 has no pricing snapshots.", FormatSnapshotHistory(9, nil))

	text := FormatSnapshotHistory(9, []storage.Snapshot{
		{ID: "a", OrderID: 9, CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Breakdown: pricing.Breakdown{FinalPriceLocal: 500, NetProfit: 40}},
		{ID: "b", OrderID: 9, CreatedAt: time.Date(2024, 3, 2, 11, 0, 0, 0, time.UTC),
			Breakdown: pricing.Breakdown{FinalPriceLocal: 520, NetProfit: 55.5}},
	})
	assert.Contains(t, text, "1. 01.03.2024 10:00 · price 500.00 · profit 40.00")
	assert.Contains(t, text, "2. 02.03.2024 11:00 · price 520.00 · profit 55.50")
}
