// Package ledger is the system of record for orders, trades and
// portfolio snapshots. Terminal orders are archived, never deleted;
// trades and snapshots are append-only.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quantfork/tradeflow/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(ctx context.Context, order *types.Order) error {
	return d.db.WithContext(ctx).Create(order).Error
}

func (d *Database) GetOrder(ctx context.Context, orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus writes a new status for an order. Updating an order
// the ledger has never seen is an error, not a silent no-op.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	result := d.db.WithContext(ctx).
		Model(&types.Order{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("order %s not found in ledger", orderID)
	}
	return nil
}

// GetActiveOrders returns all orders not yet in a terminal status,
// whatever non-terminal status they carry. Used to rebuild the active
// index after a restart.
func (d *Database) GetActiveOrders(ctx context.Context) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.WithContext(ctx).
		Where("status NOT IN ?", []string{types.OrderStatusFilled, types.OrderStatusCancelled}).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (d *Database) RecordTrade(ctx context.Context, trade *types.Trade) error {
	return d.db.WithContext(ctx).Create(trade).Error
}

// GetStrategyTrades returns trades for a strategy executed within
// [start, end]. A zero start means no lower bound.
func (d *Database) GetStrategyTrades(ctx context.Context, strategyID string, start, end time.Time) ([]types.Trade, error) {
	var trades []types.Trade
	query := d.db.WithContext(ctx).Where("strategy_id = ?", strategyID)
	if !start.IsZero() {
		query = query.Where("executed_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("executed_at <= ?", end)
	}
	if err := query.Order("executed_at asc").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (d *Database) CreateSnapshot(ctx context.Context, snapshot *types.PortfolioSnapshot) error {
	return d.db.WithContext(ctx).Create(snapshot).Error
}

// GetPortfolioHistory returns all snapshots for a portfolio in ascending
// timestamp order.
func (d *Database) GetPortfolioHistory(ctx context.Context, portfolioID string) ([]types.PortfolioSnapshot, error) {
	var snapshots []types.PortfolioSnapshot
	if err := d.db.WithContext(ctx).
		Where("portfolio_id = ?", portfolioID).
		Order("timestamp asc").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (d *Database) SaveReport(ctx context.Context, record *types.ReportRecord) error {
	return d.db.WithContext(ctx).Create(record).Error
}

// GetLatestReport returns the most recently generated report for a
// strategy/portfolio pair, or nil when none exists yet.
func (d *Database) GetLatestReport(ctx context.Context, strategyID, portfolioID string) (*types.ReportRecord, error) {
	var record types.ReportRecord
	err := d.db.WithContext(ctx).
		Where("strategy_id = ? AND portfolio_id = ?", strategyID, portfolioID).
		Order("generated_at desc").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
