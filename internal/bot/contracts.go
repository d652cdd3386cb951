package bot

import (
	"context"
	"time"

	"landed-bot/internal/orders"
	"landed-bot/internal/pricing"
	"landed-bot/internal/report"
	"landed-bot/internal/storage"
	"landed-bot/pkg/fxrates"
)

type OrderService interface {
	Quote(ctx context.Context, in pricing.ProductInput) (pricing.Breakdown, error)
	QuoteLines(ctx context.Context, lines []pricing.OrderLine) (pricing.Breakdown, error)
	PriceOrder(ctx context.Context, req orders.OrderRequest) (storage.Order, bool, error)
	Reprice(ctx context.Context, orderID int64, lines []pricing.OrderLine) (storage.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status orders.Status) (storage.Order, error)
	Order(ctx context.Context, orderID int64) (storage.Order, error)
}

type ReportService interface {
	OrderProfit(ctx context.Context, orderID int64, a pricing.ReportingAssumptions) (report.OrderProfit, error)
	PeriodProfit(ctx context.Context, from, to time.Time, period report.Period, a pricing.ReportingAssumptions) (report.PeriodReport, error)
}

type Store interface {
	PricingSettings(ctx context.Context) (pricing.Configuration, error)
	UpdatePricingSettings(ctx context.Context, updatedBy int64, fn func(cfg *pricing.Configuration) error) (pricing.Configuration, error)
	UpdateFxRates(ctx context.Context, rates map[string]float64, updatedBy int64) (pricing.Configuration, error)
	GetOrderStatistics(ctx context.Context) (*storage.OrderStatistics, error)
	ListOrders(ctx context.Context, limit int) ([]storage.Order, error)
	SnapshotHistory(ctx context.Context, orderID int64) ([]storage.Snapshot, error)
	CheckRateLimit(ctx context.Context, userID int64, action string, limit int64, window time.Duration) (bool, error)
}

type RateSource interface {
	Latest(ctx context.Context, local string, symbols []string) (fxrates.Quote, error)
}
