package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"landed-bot/internal/pricing"
	"landed-bot/internal/storage"
)

type fakeStore struct {
	cfg       pricing.Configuration
	orders    map[int64]storage.Order
	snapshots map[int64][]pricing.Breakdown
	nextID    int64
	createErr error

	// beforeWrite runs between the service's read and its write.
	beforeWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cfg:       pricing.DefaultConfiguration(),
		orders:    make(map[int64]storage.Order),
		snapshots: make(map[int64][]pricing.Breakdown),
	}
}

func (f *fakeStore) PricingSettings(context.Context) (pricing.Configuration, error) {
	return f.cfg.Clone(), nil
}

func (f *fakeStore) CreateOrder(_ context.Context, in storage.NewOrder, b pricing.Breakdown) (storage.Order, error) {
	if f.createErr != nil {
		return storage.Order{}, f.createErr
	}
	f.nextID++
	o := storage.Order{
		ID:          f.nextID,
		ChatID:      in.ChatID,
		ExternalRef: in.ExternalRef,
		Customer:    in.Customer,
		Currency:    b.Rates.Currency,
		Lines:       in.Lines,
		Status:      in.Status,
		SnapshotID:  fmt.Sprintf("snap-%d-1", f.nextID),
		Breakdown:   b,
	}
	f.orders[o.ID] = o
	f.snapshots[o.ID] = append(f.snapshots[o.ID], b)
	return o, nil
}

func (f *fakeStore) ReplaceSnapshot(_ context.Context, id int64, expectedStatus string, lines []pricing.OrderLine, b pricing.Breakdown) (storage.Order, error) {
	f.runBeforeWrite()
	o, ok := f.orders[id]
	if !ok {
		return storage.Order{}, storage.ErrNotFound
	}
	if o.Status != expectedStatus {
		return storage.Order{}, storage.ErrStatusConflict
	}
	f.snapshots[id] = append(f.snapshots[id], b)
	o.Lines = lines
	o.Breakdown = b
	o.SnapshotID = fmt.Sprintf("snap-%d-%d", id, len(f.snapshots[id]))
	f.orders[id] = o
	return o, nil
}

func (f *fakeStore) GetOrder(_ context.Context, id int64) (storage.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return storage.Order{}, fmt.Errorf("order %d: %w", id, storage.ErrNotFound)
	}
	return o, nil
}

func (f *fakeStore) GetOrderByExternalRef(_ context.Context, ref string) (storage.Order, error) {
	for _, o := range f.orders {
		if o.ExternalRef == ref {
			return o, nil
		}
	}
	return storage.Order{}, storage.ErrNotFound
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, id int64, from, to string) error {
	f.runBeforeWrite()
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrNotFound
	}
	if o.Status != from {
		return fmt.Errorf("order %d is %s: %w", id, o.Status, storage.ErrStatusConflict)
	}
	o.Status = to
	f.orders[id] = o
	return nil
}

func (f *fakeStore) runBeforeWrite() {
	if f.beforeWrite != nil {
		hook := f.beforeWrite
		f.beforeWrite = nil
		hook()
	}
}

func (f *fakeStore) setStatus(id int64, status Status) {
	o := f.orders[id]
	o.Status = string(status)
	f.orders[id] = o
}

func exampleLines() []pricing.OrderLine {
	return []pricing.OrderLine{{SKU: "BAG-1", Currency: "EUR", UnitPrice: 50, Quantity: 1, UnitWeightKg: 0.4}}
}

func TestPriceOrder(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, created, err := svc.PriceOrder(context.Background(), OrderRequest{ChatID: 5, Customer: "Dana", Lines: exampleLines()})
	require.NoError(t, err)
	assert.True(t, created)

	want, err := pricing.ComputeBreakdown(store.cfg, pricing.ProductInput{Currency: "EUR", ProductPrice: 50, WeightKg: 0.4})
	require.NoError(t, err)

	assert.Equal(t, string(StatusNew), order.Status)
	assert.Equal(t, "EUR", order.Currency)
	assert.Equal(t, want, order.Breakdown)
	assert.Len(t, store.snapshots[order.ID], 1)
}

func TestPriceOrder_ExternalRefIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())
	req := OrderRequest{ExternalRef: "shop-100", Lines: exampleLines()}

	first, created, err := svc.PriceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.PriceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.orders, 1)
}

func TestPriceOrder_LostDuplicateRaceIsNotCreated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())
	req := OrderRequest{ExternalRef: "shop-200", Lines: exampleLines()}

	first, _, err := svc.PriceOrder(context.Background(), req)
	require.NoError(t, err)

	// A concurrent delivery stored the order after our lookup missed.
	racing := &raceStore{fakeStore: store}
	store.createErr = storage.ErrDuplicate
	second, created, err := NewService(racing, zap.NewNop()).PriceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestPriceOrder_RejectsBadLines(t *testing.T) {
	t.Parallel()

	svc := NewService(newFakeStore(), zap.NewNop())

	_, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: []pricing.OrderLine{
		{Currency: "EUR", UnitPrice: 10, Quantity: 1},
		{Currency: "USD", UnitPrice: 10, Quantity: 1},
	}})
	require.ErrorIs(t, err, pricing.ErrCurrencyMismatch)

	_, _, err = svc.PriceOrder(context.Background(), OrderRequest{Lines: []pricing.OrderLine{
		{Currency: "JPY", UnitPrice: 10, Quantity: 1},
	}})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestPriceOrder_StoreFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("connection reset")
	svc := NewService(store, zap.NewNop())

	_, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestReprice_UsesCurrentSettingsAndKeepsHistory(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.NoError(t, err)

	store.cfg.FxRate["EUR"] = 4.4
	repriced, err := svc.Reprice(context.Background(), order.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 4.4, repriced.Breakdown.Rates.FxRate)
	assert.Greater(t, repriced.Breakdown.FinalPriceLocal, order.Breakdown.FinalPriceLocal)
	assert.Equal(t, order.Lines, repriced.Lines)
	require.Len(t, store.snapshots[order.ID], 2)
	assert.Equal(t, order.Breakdown, store.snapshots[order.ID][0])
}

func TestReprice_ClosedOrder(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.Reprice(context.Background(), order.ID, nil)
	require.ErrorIs(t, err, ErrOrderClosed)

	_, err = svc.Reprice(context.Background(), 999, nil)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, string(StatusShipped), updated.Status)
	assert.Equal(t, string(StatusShipped), store.orders[order.ID].Status)

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusProcessing)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatus_ConcurrentChangeIsRejected(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusShipped)
	require.NoError(t, err)

	// Another operator completes the order after we read it as shipped.
	store.beforeWrite = func() { store.setStatus(order.ID, StatusCompleted) }

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, string(StatusCompleted), store.orders[order.ID].Status)
}

func TestReprice_OrderClosedConcurrently(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.NoError(t, err)

	store.beforeWrite = func() { store.setStatus(order.ID, StatusCancelled) }

	_, err = svc.Reprice(context.Background(), order.ID, nil)
	require.ErrorIs(t, err, ErrOrderClosed)
	assert.Len(t, store.snapshots[order.ID], 1)
}

func TestReprice_StatusMovedConcurrently(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(store, zap.NewNop())

	order, _, err := svc.PriceOrder(context.Background(), OrderRequest{Lines: exampleLines()})
	require.NoError(t, err)

	store.beforeWrite = func() { store.setStatus(order.ID, StatusProcessing) }

	_, err = svc.Reprice(context.Background(), order.ID, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Len(t, store.snapshots[order.ID], 1)
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusProcessing, true},
		{StatusNew, StatusCompleted, true},
		{StatusProcessing, StatusNew, false},
		{StatusShipped, StatusCancelled, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusNew, false},
		{StatusNew, StatusNew, false},
		{StatusNew, Status("lost"), false},
	}
	for _, tc := range tests {
		assert.Equalf(t, tc.want, CanTransition(tc.from, tc.to), "%s → %s", tc.from, tc.to)
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	st, err := ParseStatus(" Shipped ")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, st)

	_, err = ParseStatus("lost")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

// raceStore misses the first external reference lookup, as if a concurrent
// delivery had not committed yet.
type raceStore struct {
	*fakeStore
	looked bool
}

func (r *raceStore) GetOrderByExternalRef(ctx context.Context, ref string) (storage.Order, error) {
	if !r.looked {
		r.looked = true
		return storage.Order{}, storage.ErrNotFound
	}
	return r.fakeStore.GetOrderByExternalRef(ctx, ref)
}
