package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"landed-bot/internal/pricing"
	"landed-bot/internal/storage"
)

type SettingsStore interface {
	PricingSettings(ctx context.Context) (pricing.Configuration, error)
}

type Store interface {
	SettingsStore
	CreateOrder(ctx context.Context, in storage.NewOrder, b pricing.Breakdown) (storage.Order, error)
	ReplaceSnapshot(ctx context.Context, orderID int64, expectedStatus string, lines []pricing.OrderLine, b pricing.Breakdown) (storage.Order, error)
	GetOrder(ctx context.Context, orderID int64) (storage.Order, error)
	GetOrderByExternalRef(ctx context.Context, ref string) (storage.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to string) error
}

// OrderRequest is an order as it arrives from the bot dialog or the
// storefront webhook.
type OrderRequest struct {
	ChatID      int64               `json:"chat_id,omitempty"`
	ExternalRef string              `json:"external_ref,omitempty"`
	Customer    string              `json:"customer,omitempty"`
	Lines       []pricing.OrderLine `json:"lines"`
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Quote prices a product under the current settings without storing anything.
func (s *Service) Quote(ctx context.Context, in pricing.ProductInput) (pricing.Breakdown, error) {
	cfg, err := s.store.PricingSettings(ctx)
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("load settings: %w", err)
	}

	return pricing.ComputeBreakdown(cfg, in)
}

// QuoteLines aggregates lines and prices the result without storing anything.
func (s *Service) QuoteLines(ctx context.Context, lines []pricing.OrderLine) (pricing.Breakdown, error) {
	in, err := pricing.AggregateLines(lines)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return s.Quote(ctx, in)
}

// PriceOrder prices and persists a new order. An order whose external
// reference is already stored is returned as is with created set to false.
func (s *Service) PriceOrder(ctx context.Context, req OrderRequest) (order storage.Order, created bool, err error) {
	if req.ExternalRef != "" {
		existing, err := s.store.GetOrderByExternalRef(ctx, req.ExternalRef)
		if err == nil {
			s.logger.Info("Order already received",
				zap.String("external_ref", req.ExternalRef),
				zap.Int64("order_id", existing.ID))
			return existing, false, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return storage.Order{}, false, fmt.Errorf("lookup order: %w", err)
		}
	}

	b, err := s.QuoteLines(ctx, req.Lines)
	if err != nil {
		return storage.Order{}, false, err
	}

	order, err = s.store.CreateOrder(ctx, storage.NewOrder{
		ChatID:      req.ChatID,
		ExternalRef: req.ExternalRef,
		Customer:    req.Customer,
		Status:      string(StatusNew),
		Lines:       req.Lines,
	}, b)
	if errors.Is(err, storage.ErrDuplicate) && req.ExternalRef != "" {
		// Lost a race with a concurrent delivery of the same order.
		existing, err := s.store.GetOrderByExternalRef(ctx, req.ExternalRef)
		if err != nil {
			return storage.Order{}, false, fmt.Errorf("lookup order: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return storage.Order{}, false, fmt.Errorf("save order: %w", err)
	}

	if b.NetProfit < 0 {
		s.logger.Warn("Order priced at a loss",
			zap.Int64("order_id", order.ID),
			zap.Float64("net_profit", b.NetProfit))
	}
	return order, true, nil
}

// Reprice prices an open order again under the current settings. Nil lines
// keep the order's existing lines. The previous snapshot stays on record.
func (s *Service) Reprice(ctx context.Context, orderID int64, lines []pricing.OrderLine) (storage.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return storage.Order{}, err
	}
	if Status(order.Status).Closed() {
		return storage.Order{}, fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrOrderClosed)
	}

	if lines == nil {
		lines = order.Lines
	}

	b, err := s.QuoteLines(ctx, lines)
	if err != nil {
		return storage.Order{}, err
	}

	updated, err := s.store.ReplaceSnapshot(ctx, orderID, order.Status, lines, b)
	if errors.Is(err, storage.ErrStatusConflict) {
		return storage.Order{}, s.statusConflict(ctx, orderID, Status(order.Status))
	}
	if err != nil {
		return storage.Order{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.logger.Info("Order repriced",
		zap.Int64("order_id", orderID),
		zap.Float64("old_price", order.Breakdown.FinalPriceLocal),
		zap.Float64("new_price", b.FinalPriceLocal))
	return updated, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status Status) (storage.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return storage.Order{}, err
	}

	from := Status(order.Status)
	if !CanTransition(from, status) {
		return storage.Order{}, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, status)
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, string(from), string(status)); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return storage.Order{}, fmt.Errorf("%w: order %d is no longer %s", ErrInvalidTransition, orderID, from)
		}
		return storage.Order{}, fmt.Errorf("update status: %w", err)
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)))

	order.Status = string(status)
	return order, nil
}

// statusConflict explains a write that lost a race with a status change.
func (s *Service) statusConflict(ctx context.Context, orderID int64, was Status) error {
	current, err := s.store.GetOrder(ctx, orderID)
	if err == nil && Status(current.Status).Closed() {
		return fmt.Errorf("order %d is %s: %w", orderID, current.Status, ErrOrderClosed)
	}
	return fmt.Errorf("%w: order %d is no longer %s", ErrInvalidTransition, orderID, was)
}

func (s *Service) Order(ctx context.Context, orderID int64) (storage.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}
