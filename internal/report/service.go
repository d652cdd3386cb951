package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"landed-bot/internal/orders"
	"landed-bot/internal/pricing"
	"landed-bot/internal/storage"
)

const defaultWorkers = 8

var ErrNotPriced = errors.New("report: order has no pricing snapshot")

type Store interface {
	GetOrder(ctx context.Context, orderID int64) (storage.Order, error)
	PeriodSnapshots(ctx context.Context, from, to time.Time) ([]storage.Snapshot, error)
}

// OrderProfit is the realized margin of one order's current snapshot.
type OrderProfit struct {
	OrderID         int64                `json:"order_id"`
	SnapshotID      string               `json:"snapshot_id"`
	Status          string               `json:"status"`
	FinalPriceLocal float64              `json:"final_price_local"`
	QuotedProfit    float64              `json:"quoted_profit"`
	Result          pricing.ProfitResult `json:"result"`
}

// Totals aggregates reconciled orders. Money is summed in decimal.
type Totals struct {
	Orders        int             `json:"orders"`
	RevenueExVat  decimal.Decimal `json:"revenue_ex_vat"`
	ProcessorFees decimal.Decimal `json:"processor_fees"`
	CostsExVat    decimal.Decimal `json:"costs_ex_vat"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	LossOrders    int             `json:"loss_orders"`
}

// MarginPct is net profit over ex-VAT revenue, or zero without revenue.
func (t Totals) MarginPct() decimal.Decimal {
	if !t.RevenueExVat.IsPositive() {
		return decimal.Zero
	}
	return t.NetProfit.Div(t.RevenueExVat)
}

func (t *Totals) add(r pricing.ProfitResult) {
	t.Orders++
	t.RevenueExVat = t.RevenueExVat.Add(decimal.NewFromFloat(r.RevenueExVat))
	t.ProcessorFees = t.ProcessorFees.Add(decimal.NewFromFloat(r.ProcessorFees))
	t.CostsExVat = t.CostsExVat.Add(decimal.NewFromFloat(r.TotalCostsExVat))
	t.NetProfit = t.NetProfit.Add(decimal.NewFromFloat(r.NetProfit))
	if r.NetProfit < 0 {
		t.LossOrders++
	}
}

type Bucket struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Totals
}

type PeriodReport struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Period    Period    `json:"period"`
	Buckets   []Bucket  `json:"buckets"`
	Total     Totals    `json:"total"`
	Cancelled int       `json:"cancelled"`
}

type Service struct {
	store   Store
	loc     *time.Location
	workers int
	logger  *zap.Logger
}

func NewService(store Store, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:   store,
		loc:     loc,
		workers: defaultWorkers,
		logger:  logger,
	}
}

func (s *Service) OrderProfit(ctx context.Context, orderID int64, a pricing.ReportingAssumptions) (OrderProfit, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return OrderProfit{}, err
	}
	if order.SnapshotID == "" {
		return OrderProfit{}, fmt.Errorf("order %d: %w", orderID, ErrNotPriced)
	}

	return OrderProfit{
		OrderID:         order.ID,
		SnapshotID:      order.SnapshotID,
		Status:          order.Status,
		FinalPriceLocal: order.Breakdown.FinalPriceLocal,
		QuotedProfit:    order.Breakdown.NetProfit,
		Result:          pricing.ReconcileProfit(pricing.NewProfitSnapshot(order.Breakdown, a)),
	}, nil
}

// PeriodProfit reconciles every order created in [from, to) and groups the
// results by period. Cancelled orders are counted but not reconciled.
func (s *Service) PeriodProfit(ctx context.Context, from, to time.Time, period Period, a pricing.ReportingAssumptions) (PeriodReport, error) {
	if !from.Before(to) {
		return PeriodReport{}, fmt.Errorf("empty range: %s is not before %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	period, err := ParsePeriod(string(period))
	if err != nil {
		return PeriodReport{}, err
	}

	snaps, err := s.store.PeriodSnapshots(ctx, from, to)
	if err != nil {
		return PeriodReport{}, fmt.Errorf("load snapshots: %w", err)
	}

	report := PeriodReport{From: from, To: to, Period: period}

	active := snaps[:0:0]
	for _, snap := range snaps {
		if orders.Status(snap.Status) == orders.StatusCancelled {
			report.Cancelled++
			continue
		}
		active = append(active, snap)
	}

	results := make([]pricing.ProfitResult, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, snap := range active {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = pricing.ReconcileProfit(pricing.NewProfitSnapshot(snap.Breakdown, a))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PeriodReport{}, err
	}

	buckets := make(map[time.Time]*Bucket)
	for i, snap := range active {
		start := period.Start(snap.CreatedAt, s.loc)
		b, ok := buckets[start]
		if !ok {
			b = &Bucket{Start: start, End: period.Next(start)}
			buckets[start] = b
		}
		b.add(results[i])
		report.Total.add(results[i])
	}

	report.Buckets = make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		report.Buckets = append(report.Buckets, *b)
	}
	sort.Slice(report.Buckets, func(i, j int) bool {
		return report.Buckets[i].Start.Before(report.Buckets[j].Start)
	})

	s.logger.Info("Profit report built",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.String("period", string(period)),
		zap.Int("orders", report.Total.Orders),
		zap.Int("cancelled", report.Cancelled))

	return report, nil
}
