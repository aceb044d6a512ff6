package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quantfork/tradeflow/internal/database"
	"github.com/quantfork/tradeflow/internal/ledger"
	"github.com/quantfork/tradeflow/internal/lifecycle"
	"github.com/quantfork/tradeflow/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeCache implements lifecycle.OrderCache in memory. Set failing to
// true to simulate an unavailable cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]types.Order
	failing bool

	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]types.Order)}
}

func (f *fakeCache) Set(_ context.Context, order *types.Order, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("cache unavailable")
	}
	f.entries[order.OrderID] = *order
	f.sets++
	return nil
}

func (f *fakeCache) Get(_ context.Context, orderID string) (*types.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("cache unavailable")
	}
	if order, ok := f.entries[orderID]; ok {
		return &order, nil
	}
	return nil, nil
}

func (f *fakeCache) Delete(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("cache unavailable")
	}
	delete(f.entries, orderID)
	f.deletes++
	return nil
}

func newTestDB(t *testing.T) (*gorm.DB, *ledger.Database) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return db, ledger.NewDatabase(db)
}

func newTestService(t *testing.T) (*lifecycle.Service, *ledger.Database, *fakeCache) {
	t.Helper()
	_, ledgerDB := newTestDB(t)
	cache := newFakeCache()
	return lifecycle.NewService(ledgerDB, cache, time.Hour), ledgerDB, cache
}

func TestCreateOrderAppearsInActiveIndex(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	amount := decimal.RequireFromString("2.5")
	price := decimal.RequireFromString("1850.75")

	order, err := svc.CreateOrder(ctx, "0xdead", amount, price, "LIMIT")
	require.NoError(t, err)
	require.NotEmpty(t, order.OrderID)

	active := svc.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, order.OrderID, active[0].OrderID)
	assert.Equal(t, types.OrderStatusPending, active[0].Status)
	assert.Equal(t, "0xdead", active[0].TokenAddress)
	assert.True(t, active[0].Amount.Equal(amount))
	assert.True(t, active[0].Price.Equal(price))
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		tokenAddress string
		amount       string
		price        string
		wantErr      bool
	}{
		{"negative amount", "0xdead", "-1", "10", true},
		{"zero amount", "0xdead", "0", "10", true},
		{"negative price", "0xdead", "1", "-0.01", true},
		{"missing token address", "", "1", "10", true},
		{"zero price is legal", "0xdead", "1", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx,
				tt.tokenAddress,
				decimal.RequireFromString(tt.amount),
				decimal.RequireFromString(tt.price),
				"MARKET",
			)
			if tt.wantErr {
				assert.ErrorIs(t, err, lifecycle.ErrInvalidOrder)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCancelOrderUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.CancelOrder(context.Background(), "no-such-order")
	assert.ErrorIs(t, err, lifecycle.ErrOrderNotFound)
}

func TestCancelOrderIsNotIdempotent(t *testing.T) {
	svc, ledgerDB, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "MARKET")
	require.NoError(t, err)

	require.NoError(t, svc.CancelOrder(ctx, order.OrderID))
	assert.Empty(t, svc.GetActiveOrders())

	// The ledger keeps the archived order; the second cancel still fails.
	stored, err := ledgerDB.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, types.OrderStatusCancelled, stored.Status)

	err = svc.CancelOrder(ctx, order.OrderID)
	assert.ErrorIs(t, err, lifecycle.ErrOrderNotFound)
}

func TestCancelOnlyLegalFromPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "LIMIT")
	require.NoError(t, err)

	// A non-terminal refresh keeps the order active but moves it off
	// PENDING, which makes cancellation illegal.
	require.NoError(t, svc.UpdateOrderStatus(ctx, order.OrderID, "PARTIALLY_FILLED"))
	require.Len(t, svc.GetActiveOrders(), 1)

	err = svc.CancelOrder(ctx, order.OrderID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestUpdateOrderStatusTerminalRemovesFromIndex(t *testing.T) {
	svc, ledgerDB, cache := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "MARKET")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateOrderStatus(ctx, order.OrderID, types.OrderStatusFilled))
	assert.Empty(t, svc.GetActiveOrders())

	// Terminal orders are archived in the ledger, not deleted.
	stored, err := ledgerDB.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, types.OrderStatusFilled, stored.Status)

	// The cache entry is gone.
	cached, err := cache.Get(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestUpdateOrderStatusRefreshKeepsActive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "MARKET")
	require.NoError(t, err)

	// Writing PENDING again is a refresh, not a transition.
	require.NoError(t, svc.UpdateOrderStatus(ctx, order.OrderID, types.OrderStatusPending))
	require.NoError(t, svc.UpdateOrderStatus(ctx, order.OrderID, types.OrderStatusPending))

	active := svc.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, types.OrderStatusPending, active[0].Status)
}

func TestUpdateOrderStatusUnknownID(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.UpdateOrderStatus(context.Background(), "no-such-order", types.OrderStatusFilled)
	assert.ErrorIs(t, err, lifecycle.ErrOrderNotFound)
}

func TestCacheFailureDoesNotFailCreate(t *testing.T) {
	_, ledgerDB := newTestDB(t)
	cache := newFakeCache()
	cache.failing = true
	svc := lifecycle.NewService(ledgerDB, cache, time.Hour)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "MARKET")
	require.NoError(t, err)

	// The ledger is authoritative; the order exists despite the cache.
	stored, err := ledgerDB.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, svc.GetActiveOrders(), 1)

	// Cancellation also survives a failing cache.
	require.NoError(t, svc.CancelOrder(ctx, order.OrderID))
	assert.Empty(t, svc.GetActiveOrders())
}

func TestPersistenceFailureLeavesNoPartialState(t *testing.T) {
	db, ledgerDB := newTestDB(t)
	cache := newFakeCache()
	svc := lifecycle.NewService(ledgerDB, cache, time.Hour)
	ctx := context.Background()

	// Simulate an unavailable ledger.
	require.NoError(t, db.Migrator().DropTable(&types.Order{}))

	_, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "MARKET")
	require.Error(t, err)
	assert.NotErrorIs(t, err, lifecycle.ErrInvalidOrder)

	assert.Empty(t, svc.GetActiveOrders())
	assert.Zero(t, cache.sets)
}

func TestRestoreRebuildsActiveIndex(t *testing.T) {
	_, ledgerDB := newTestDB(t)
	ctx := context.Background()

	pending := &types.Order{
		OrderID:      uuid.New().String(),
		TokenAddress: "0xdead",
		Amount:       decimal.NewFromInt(1),
		Price:        decimal.NewFromInt(10),
		OrderType:    "LIMIT",
		Status:       types.OrderStatusPending,
	}
	filled := &types.Order{
		OrderID:      uuid.New().String(),
		TokenAddress: "0xbeef",
		Amount:       decimal.NewFromInt(2),
		Price:        decimal.NewFromInt(20),
		OrderType:    "MARKET",
		Status:       types.OrderStatusFilled,
	}
	require.NoError(t, ledgerDB.CreateOrder(ctx, pending))
	require.NoError(t, ledgerDB.CreateOrder(ctx, filled))

	svc := lifecycle.NewService(ledgerDB, newFakeCache(), time.Hour)
	require.NoError(t, svc.Restore(ctx))

	active := svc.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, pending.OrderID, active[0].OrderID)
}

func TestRestoreKeepsNonPendingActiveOrders(t *testing.T) {
	_, ledgerDB := newTestDB(t)
	ctx := context.Background()

	svc := lifecycle.NewService(ledgerDB, newFakeCache(), time.Hour)
	order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "LIMIT")
	require.NoError(t, err)
	require.NoError(t, svc.UpdateOrderStatus(ctx, order.OrderID, "PARTIALLY_FILLED"))
	require.Len(t, svc.GetActiveOrders(), 1)

	// A restart must not strand an active order just because its status
	// moved off PENDING.
	restarted := lifecycle.NewService(ledgerDB, newFakeCache(), time.Hour)
	require.NoError(t, restarted.Restore(ctx))

	active := restarted.GetActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, order.OrderID, active[0].OrderID)
	assert.Equal(t, "PARTIALLY_FILLED", active[0].Status)

	// It is still cancellable only per the state machine, but fillable.
	require.NoError(t, restarted.UpdateOrderStatus(ctx, order.OrderID, types.OrderStatusFilled))
	assert.Empty(t, restarted.GetActiveOrders())
}

func TestOrderRoundTripPreservesDecimalPrecision(t *testing.T) {
	svc, ledgerDB, _ := newTestService(t)
	ctx := context.Background()

	amount := decimal.RequireFromString("0.123456789012345678")
	price := decimal.RequireFromString("1234.000000000000000001")

	order, err := svc.CreateOrder(ctx, "0xdead", amount, price, "LIMIT")
	require.NoError(t, err)

	stored, err := ledgerDB.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Amount.Equal(amount), "amount %s != %s", stored.Amount, amount)
	assert.True(t, stored.Price.Equal(price), "price %s != %s", stored.Price, price)
}

func TestConcurrentLifecycleOperations(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		order, err := svc.CreateOrder(ctx, "0xdead", decimal.NewFromInt(1), decimal.NewFromInt(10), "MARKET")
		require.NoError(t, err)
		ids[i] = order.OrderID
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if i%2 == 0 {
				_ = svc.CancelOrder(ctx, id)
			} else {
				_ = svc.UpdateOrderStatus(ctx, id, types.OrderStatusFilled)
			}
		}(i, id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.GetActiveOrders()
		}()
	}
	wg.Wait()

	assert.Empty(t, svc.GetActiveOrders())
}
