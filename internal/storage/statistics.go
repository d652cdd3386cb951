package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const statsTTL = 15 * time.Minute

type OrderStatistics struct {
	TotalOrders    int            `json:"total_orders"`
	TotalRevenue   float64        `json:"total_revenue"`
	TotalNetProfit float64        `json:"total_net_profit"`
	TodayOrders    int            `json:"today_orders"`
	TodayRevenue   float64        `json:"today_revenue"`
	WeekOrders     int            `json:"week_orders"`
	WeekRevenue    float64        `json:"week_revenue"`
	MonthOrders    int            `json:"month_orders"`
	MonthRevenue   float64        `json:"month_revenue"`
	StatusCounts   map[string]int `json:"status_counts"`
}

// GetOrderStatistics summarizes non-cancelled orders by their current
// snapshot. The result is cached until an order changes.
func (s *PostgresStorage) GetOrderStatistics(ctx context.Context) (*OrderStatistics, error) {
	const operation = "storage.GetOrderStatistics"

	var cached OrderStatistics
	if err := s.redis.GetJSON(ctx, statsCacheKey, &cached); err == nil {
		return &cached, nil
	}

	var totals struct {
		TotalOrders    int     `db:"total_orders"`
		TotalRevenue   float64 `db:"total_revenue"`
		TotalNetProfit float64 `db:"total_net_profit"`
		TodayOrders    int     `db:"today_orders"`
		TodayRevenue   float64 `db:"today_revenue"`
		WeekOrders     int     `db:"week_orders"`
		WeekRevenue    float64 `db:"week_revenue"`
		MonthOrders    int     `db:"month_orders"`
		MonthRevenue   float64 `db:"month_revenue"`
	}

	const query = `
        SELECT
            COUNT(*) AS total_orders,
            COALESCE(SUM(s.final_price_local), 0) AS total_revenue,
            COALESCE(SUM(s.net_profit), 0) AS total_net_profit,
            COUNT(*) FILTER (WHERE o.created_at >= CURRENT_DATE) AS today_orders,
            COALESCE(SUM(s.final_price_local) FILTER (WHERE o.created_at >= CURRENT_DATE), 0) AS today_revenue,
            COUNT(*) FILTER (WHERE o.created_at >= CURRENT_DATE - INTERVAL '7 days') AS week_orders,
            COALESCE(SUM(s.final_price_local) FILTER (WHERE o.created_at >= CURRENT_DATE - INTERVAL '7 days'), 0) AS week_revenue,
            COUNT(*) FILTER (WHERE o.created_at >= CURRENT_DATE - INTERVAL '30 days') AS month_orders,
            COALESCE(SUM(s.final_price_local) FILTER (WHERE o.created_at >= CURRENT_DATE - INTERVAL '30 days'), 0) AS month_revenue
        FROM orders o
        JOIN pricing_snapshots s ON s.id = o.snapshot_id
        WHERE o.status <> 'cancelled'
    `
	if err := s.db.GetContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("%s: failed to get totals: %w", operation, err)
	}

	stats := &OrderStatistics{
		TotalOrders:    totals.TotalOrders,
		TotalRevenue:   totals.TotalRevenue,
		TotalNetProfit: totals.TotalNetProfit,
		TodayOrders:    totals.TodayOrders,
		TodayRevenue:   totals.TodayRevenue,
		WeekOrders:     totals.WeekOrders,
		WeekRevenue:    totals.WeekRevenue,
		MonthOrders:    totals.MonthOrders,
		MonthRevenue:   totals.MonthRevenue,
		StatusCounts:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get status counts: %w", operation, err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: failed to scan status count: %w", operation, err)
		}
		stats.StatusCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	if err := s.redis.SetJSON(ctx, statsCacheKey, stats, statsTTL); err != nil {
		s.logger.Warn("Failed to cache order statistics", zap.Error(err))
	}

	return stats, nil
}
