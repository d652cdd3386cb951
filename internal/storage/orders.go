package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"landed-bot/internal/pricing"
)

const statsCacheKey = "order_stats"

type Order struct {
	ID          int64               `json:"id"`
	ChatID      int64               `json:"chat_id,omitempty"`
	ExternalRef string              `json:"external_ref,omitempty"`
	Customer    string              `json:"customer,omitempty"`
	Currency    string              `json:"currency"`
	Lines       []pricing.OrderLine `json:"lines"`
	Status      string              `json:"status"`
	SnapshotID  string              `json:"snapshot_id"`
	Breakdown   pricing.Breakdown   `json:"breakdown"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// NewOrder is what a caller supplies when creating an order.
type NewOrder struct {
	ChatID      int64
	ExternalRef string
	Customer    string
	Status      string
	Lines       []pricing.OrderLine
}

// Snapshot is one persisted pricing of an order. Orders keep every snapshot
// they were ever priced with; the order row points at the current one.
type Snapshot struct {
	ID        string            `json:"id"`
	OrderID   int64             `json:"order_id"`
	Status    string            `json:"status"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	CreatedAt time.Time         `json:"created_at"`
}

type orderRow struct {
	ID          int64          `db:"id"`
	ChatID      int64          `db:"chat_id"`
	ExternalRef sql.NullString `db:"external_ref"`
	Customer    string         `db:"customer"`
	Currency    string         `db:"currency"`
	Lines       []byte         `db:"lines"`
	Status      string         `db:"status"`
	SnapshotID  sql.NullString `db:"snapshot_id"`
	Breakdown   []byte         `db:"breakdown"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type snapshotRow struct {
	ID        string    `db:"id"`
	OrderID   int64     `db:"order_id"`
	Status    string    `db:"status"`
	Breakdown []byte    `db:"breakdown"`
	CreatedAt time.Time `db:"created_at"`
}

const orderSelect = `
    SELECT o.id, o.chat_id, o.external_ref, o.customer, o.currency, o.lines,
           o.status, o.snapshot_id, s.breakdown, o.created_at, o.updated_at
    FROM orders o
    LEFT JOIN pricing_snapshots s ON s.id = o.snapshot_id
`

// CreateOrder stores the order together with its first pricing snapshot.
func (s *PostgresStorage) CreateOrder(ctx context.Context, in NewOrder, b pricing.Breakdown) (Order, error) {
	const operation = "storage.CreateOrder"

	lines, err := json.Marshal(in.Lines)
	if err != nil {
		return Order{}, fmt.Errorf("%s: failed to marshal lines: %w", operation, err)
	}

	var orderID int64
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		const query = `
            INSERT INTO orders (chat_id, external_ref, customer, currency, lines, status)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING id
        `
		if err := tx.QueryRowxContext(ctx, query,
			in.ChatID,
			nullString(in.ExternalRef),
			in.Customer,
			b.Rates.Currency,
			lines,
			in.Status,
		).Scan(&orderID); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert order: %w", err)
		}

		return attachSnapshot(ctx, tx, orderID, b)
	})
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", operation, err)
	}

	s.invalidate(ctx, statsCacheKey)
	s.logger.Info("Order created",
		zap.Int64("order_id", orderID),
		zap.String("currency", b.Rates.Currency),
		zap.Float64("final_price", b.FinalPriceLocal))

	return s.GetOrder(ctx, orderID)
}

// ReplaceSnapshot records a new pricing for an existing order and makes it
// current. Earlier snapshots are kept. The order must still be in
// expectedStatus once its row is locked, otherwise ErrStatusConflict is
// returned and nothing is written.
func (s *PostgresStorage) ReplaceSnapshot(ctx context.Context, orderID int64, expectedStatus string, lines []pricing.OrderLine, b pricing.Breakdown) (Order, error) {
	const operation = "storage.ReplaceSnapshot"

	data, err := json.Marshal(lines)
	if err != nil {
		return Order{}, fmt.Errorf("%s: failed to marshal lines: %w", operation, err)
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		if err := tx.GetContext(ctx, &status, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if status != expectedStatus {
			return fmt.Errorf("order %d is %s, expected %s: %w", orderID, status, expectedStatus, ErrStatusConflict)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET lines = $1, currency = $2, updated_at = now() WHERE id = $3`,
			data, b.Rates.Currency, orderID,
		); err != nil {
			return fmt.Errorf("update lines: %w", err)
		}

		return attachSnapshot(ctx, tx, orderID, b)
	})
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", operation, err)
	}

	s.invalidate(ctx, statsCacheKey)
	return s.GetOrder(ctx, orderID)
}

func attachSnapshot(ctx context.Context, tx *sqlx.Tx, orderID int64, b pricing.Breakdown) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	id := ulid.Make().String()
	const insert = `
        INSERT INTO pricing_snapshots (id, order_id, version, breakdown, final_price_local, net_profit)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	if _, err := tx.ExecContext(ctx, insert, id, orderID, b.Version, data, b.FinalPriceLocal, b.NetProfit); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET snapshot_id = $1, updated_at = now() WHERE id = $2`,
		id, orderID,
	); err != nil {
		return fmt.Errorf("point order at snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	const operation = "storage.GetOrder"

	var row orderRow
	if err := s.db.GetContext(ctx, &row, orderSelect+` WHERE o.id = $1`, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, fmt.Errorf("%s: order %d: %w", operation, orderID, ErrNotFound)
		}
		return Order{}, fmt.Errorf("%s: failed to get order: %w", operation, err)
	}

	order, err := row.toOrder(s.upgradeFallback(ctx))
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", operation, err)
	}
	return order, nil
}

func (s *PostgresStorage) GetOrderByExternalRef(ctx context.Context, ref string) (Order, error) {
	const operation = "storage.GetOrderByExternalRef"

	var row orderRow
	if err := s.db.GetContext(ctx, &row, orderSelect+` WHERE o.external_ref = $1`, ref); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, fmt.Errorf("%s: order %q: %w", operation, ref, ErrNotFound)
		}
		return Order{}, fmt.Errorf("%s: failed to get order: %w", operation, err)
	}

	order, err := row.toOrder(s.upgradeFallback(ctx))
	if err != nil {
		return Order{}, fmt.Errorf("%s: %w", operation, err)
	}
	return order, nil
}

// ListOrders returns the most recent orders, newest first.
func (s *PostgresStorage) ListOrders(ctx context.Context, limit int) ([]Order, error) {
	const operation = "storage.ListOrders"

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, orderSelect+` ORDER BY o.created_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("%s: failed to list orders: %w", operation, err)
	}

	fallback := s.upgradeFallback(ctx)
	orders := make([]Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.toOrder(fallback)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", operation, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order from one status to another. It is a
// compare-and-set: if the order is no longer in from, ErrStatusConflict is
// returned.
func (s *PostgresStorage) UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) error {
	const operation = "storage.UpdateOrderStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`,
		to, orderID, from,
	)
	if err != nil {
		return fmt.Errorf("%s: failed to update status: %w", operation, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if n == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID); err != nil {
			return fmt.Errorf("%s: failed to check order: %w", operation, err)
		}
		if !exists {
			return fmt.Errorf("%s: order %d: %w", operation, orderID, ErrNotFound)
		}
		return fmt.Errorf("%s: order %d is no longer %s: %w", operation, orderID, from, ErrStatusConflict)
	}

	s.invalidate(ctx, statsCacheKey)
	return nil
}

// PeriodSnapshots returns the current snapshot of every order created in
// [from, to), oldest first.
func (s *PostgresStorage) PeriodSnapshots(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	const operation = "storage.PeriodSnapshots"

	const query = `
        SELECT s.id, s.order_id, o.status, s.breakdown, o.created_at
        FROM orders o
        JOIN pricing_snapshots s ON s.id = o.snapshot_id
        WHERE o.created_at >= $1 AND o.created_at < $2
        ORDER BY o.created_at, o.id
    `
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, query, from, to); err != nil {
		return nil, fmt.Errorf("%s: failed to list snapshots: %w", operation, err)
	}

	return s.decodeSnapshots(ctx, operation, rows)
}

// SnapshotHistory returns every snapshot of one order, oldest first.
func (s *PostgresStorage) SnapshotHistory(ctx context.Context, orderID int64) ([]Snapshot, error) {
	const operation = "storage.SnapshotHistory"

	const query = `
        SELECT s.id, s.order_id, o.status, s.breakdown, s.created_at
        FROM pricing_snapshots s
        JOIN orders o ON o.id = s.order_id
        WHERE s.order_id = $1
        ORDER BY s.id
    `
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("%s: failed to list snapshots: %w", operation, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: order %d: %w", operation, orderID, ErrNotFound)
	}

	return s.decodeSnapshots(ctx, operation, rows)
}

func (s *PostgresStorage) decodeSnapshots(ctx context.Context, operation string, rows []snapshotRow) ([]Snapshot, error) {
	fallback := s.upgradeFallback(ctx)
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		b, err := decodeBreakdown(row.Breakdown, fallback)
		if err != nil {
			return nil, fmt.Errorf("%s: snapshot %s: %w", operation, row.ID, err)
		}
		out = append(out, Snapshot{
			ID:        row.ID,
			OrderID:   row.OrderID,
			Status:    row.Status,
			Breakdown: b,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// upgradeFallback lazily resolves the configuration used to back-fill
// snapshots written before the rates block existed.
func (s *PostgresStorage) upgradeFallback(ctx context.Context) func() pricing.Configuration {
	var (
		cfg    pricing.Configuration
		loaded bool
	)
	return func() pricing.Configuration {
		if loaded {
			return cfg
		}
		loaded = true

		var err error
		cfg, err = s.PricingSettings(ctx)
		if err != nil {
			s.logger.Warn("Falling back to default configuration for legacy snapshots", zap.Error(err))
			cfg = pricing.DefaultConfiguration()
		}
		return cfg
	}
}

func (r orderRow) toOrder(fallback func() pricing.Configuration) (Order, error) {
	order := Order{
		ID:          r.ID,
		ChatID:      r.ChatID,
		ExternalRef: r.ExternalRef.String,
		Customer:    r.Customer,
		Currency:    r.Currency,
		Status:      r.Status,
		SnapshotID:  r.SnapshotID.String,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if err := json.Unmarshal(r.Lines, &order.Lines); err != nil {
		return Order{}, fmt.Errorf("order %d: decode lines: %w", r.ID, err)
	}

	if len(r.Breakdown) > 0 {
		b, err := decodeBreakdown(r.Breakdown, fallback)
		if err != nil {
			return Order{}, fmt.Errorf("order %d: %w", r.ID, err)
		}
		order.Breakdown = b
	}
	return order, nil
}

func decodeBreakdown(data []byte, fallback func() pricing.Configuration) (pricing.Breakdown, error) {
	var b pricing.Breakdown
	if err := json.Unmarshal(data, &b); err != nil {
		return pricing.Breakdown{}, fmt.Errorf("decode breakdown: %w", err)
	}
	if b.Version < pricing.BreakdownVersion {
		b = pricing.UpgradeBreakdown(b, fallback())
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
