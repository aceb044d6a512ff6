package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses. PENDING is the only initial status; FILLED and
// CANCELLED are terminal and never transition further.
const (
	OrderStatusPending   = "PENDING"
	OrderStatusFilled    = "FILLED"
	OrderStatusCancelled = "CANCELLED"
)

// IsTerminalStatus reports whether status archives an order.
func IsTerminalStatus(status string) bool {
	return status == OrderStatusFilled || status == OrderStatusCancelled
}

type Order struct {
	gorm.Model   `json:"-"`
	OrderID      string          `gorm:"uniqueIndex" json:"order_id"`
	TokenAddress string          `gorm:"index" json:"token_address"`
	Amount       decimal.Decimal `gorm:"type:decimal(36,18)" json:"amount"`
	Price        decimal.Decimal `gorm:"type:decimal(36,18)" json:"price"`
	OrderType    string          `json:"order_type"` // MARKET, LIMIT, etc; opaque tag
	Status       string          `json:"status"`     // PENDING, FILLED, CANCELLED
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Trade is a realized execution, append-only once recorded.
type Trade struct {
	gorm.Model   `json:"-"`
	TradeID      string          `gorm:"uniqueIndex" json:"trade_id"`
	StrategyID   string          `gorm:"index:idx_strategy_executed" json:"strategy_id"`
	PortfolioID  string          `gorm:"index" json:"portfolio_id"`
	TokenAddress string          `json:"token_address"`
	PnL          decimal.Decimal `gorm:"column:pnl;type:decimal(36,18)" json:"pnl"`
	InitialValue decimal.Decimal `gorm:"type:decimal(36,18)" json:"initial_value"`
	ExecutedAt   time.Time       `gorm:"index:idx_strategy_executed" json:"executed_at"`
}

// PortfolioSnapshot is a point-in-time valuation. The sequence of
// snapshots for a portfolio is append-only and ordered by Timestamp.
type PortfolioSnapshot struct {
	gorm.Model  `json:"-"`
	PortfolioID string          `gorm:"index:idx_portfolio_ts" json:"portfolio_id"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(36,18)" json:"total_value"`
	Timestamp   time.Time       `gorm:"index:idx_portfolio_ts" json:"timestamp"`
}

// ReportRecord archives a generated performance report. Payload holds
// the serialized PerformanceReport.
type ReportRecord struct {
	gorm.Model  `json:"-"`
	ReportID    string    `gorm:"uniqueIndex" json:"report_id"`
	StrategyID  string    `gorm:"index" json:"strategy_id"`
	PortfolioID string    `gorm:"index" json:"portfolio_id"`
	Payload     string    `gorm:"type:text" json:"payload"`
	GeneratedAt time.Time `json:"generated_at"`
}
