package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quantfork/tradeflow/internal/database"
	"github.com/quantfork/tradeflow/internal/ledger"
	"github.com/quantfork/tradeflow/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *ledger.Database {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.NewDatabase(dsn)
	require.NoError(t, err)
	return ledger.NewDatabase(db)
}

func TestCreateAndGetOrder(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	order := &types.Order{
		OrderID:      uuid.New().String(),
		TokenAddress: "0xabc",
		Amount:       decimal.RequireFromString("1.5"),
		Price:        decimal.RequireFromString("42.0"),
		OrderType:    "LIMIT",
		Status:       types.OrderStatusPending,
	}
	require.NoError(t, db.CreateOrder(ctx, order))

	got, err := db.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.OrderID, got.OrderID)
	assert.Equal(t, types.OrderStatusPending, got.Status)
	assert.True(t, got.Amount.Equal(order.Amount))
}

func TestGetOrderUnknownIDReturnsNil(t *testing.T) {
	db := newTestDatabase(t)

	got, err := db.GetOrder(context.Background(), "no-such-order")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateOrderStatus(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	order := &types.Order{
		OrderID:      uuid.New().String(),
		TokenAddress: "0xabc",
		Amount:       decimal.NewFromInt(1),
		OrderType:    "MARKET",
		Status:       types.OrderStatusPending,
	}
	require.NoError(t, db.CreateOrder(ctx, order))
	require.NoError(t, db.UpdateOrderStatus(ctx, order.OrderID, types.OrderStatusFilled))

	got, err := db.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.OrderStatusFilled, got.Status)
}

func TestUpdateOrderStatusUnknownIDFails(t *testing.T) {
	db := newTestDatabase(t)

	err := db.UpdateOrderStatus(context.Background(), "no-such-order", types.OrderStatusFilled)
	assert.Error(t, err)
}

func TestGetActiveOrders(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	// Any non-terminal status counts as active, not just PENDING.
	for _, status := range []string{
		types.OrderStatusPending,
		"PARTIALLY_FILLED",
		types.OrderStatusFilled,
		types.OrderStatusCancelled,
	} {
		require.NoError(t, db.CreateOrder(ctx, &types.Order{
			OrderID:      uuid.New().String(),
			TokenAddress: "0xabc",
			Amount:       decimal.NewFromInt(1),
			OrderType:    "MARKET",
			Status:       status,
		}))
	}

	active, err := db.GetActiveOrders(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, order := range active {
		assert.False(t, types.IsTerminalStatus(order.Status))
	}
}

func TestGetStrategyTradesWindowAndOrder(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	// Inserted out of chronological order on purpose.
	offsets := []time.Duration{48 * time.Hour, 0, 24 * time.Hour}
	for _, offset := range offsets {
		require.NoError(t, db.RecordTrade(ctx, &types.Trade{
			TradeID:    uuid.New().String(),
			StrategyID: "strat-1",
			PnL:        decimal.NewFromInt(1),
			ExecutedAt: base.Add(offset),
		}))
	}
	require.NoError(t, db.RecordTrade(ctx, &types.Trade{
		TradeID:    uuid.New().String(),
		StrategyID: "strat-other",
		PnL:        decimal.NewFromInt(1),
		ExecutedAt: base,
	}))

	all, err := db.GetStrategyTrades(ctx, "strat-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].ExecutedAt.Before(all[i-1].ExecutedAt))
	}

	windowed, err := db.GetStrategyTrades(ctx, "strat-1", base.Add(12*time.Hour), base.Add(36*time.Hour))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, base.Add(24*time.Hour).Unix(), windowed[0].ExecutedAt.Unix())
}

func TestGetPortfolioHistoryAscending(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{24 * time.Hour, 0, 48 * time.Hour} {
		require.NoError(t, db.CreateSnapshot(ctx, &types.PortfolioSnapshot{
			PortfolioID: "pf-1",
			TotalValue:  decimal.NewFromInt(100),
			Timestamp:   base.Add(offset),
		}))
	}

	history, err := db.GetPortfolioHistory(ctx, "pf-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}
}

func TestSaveAndGetLatestReport(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	older := &types.ReportRecord{
		ReportID:    uuid.New().String(),
		StrategyID:  "strat-1",
		PortfolioID: "pf-1",
		Payload:     `{"v":1}`,
		GeneratedAt: base,
	}
	newer := &types.ReportRecord{
		ReportID:    uuid.New().String(),
		StrategyID:  "strat-1",
		PortfolioID: "pf-1",
		Payload:     `{"v":2}`,
		GeneratedAt: base.Add(time.Hour),
	}
	require.NoError(t, db.SaveReport(ctx, older))
	require.NoError(t, db.SaveReport(ctx, newer))

	latest, err := db.GetLatestReport(ctx, "strat-1", "pf-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ReportID, latest.ReportID)

	missing, err := db.GetLatestReport(ctx, "strat-2", "pf-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
