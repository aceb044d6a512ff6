package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyPerformance holds trade-derived statistics for one strategy.
// Ratio outputs are float64 since they are inherently approximate;
// monetary totals stay decimal. Beta and Alpha are nil until a market
// benchmark return series is wired in.
type StrategyPerformance struct {
	StrategyID   string          `json:"strategy_id"`
	TotalTrades  int             `json:"total_trades"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinRate      float64         `json:"win_rate"`
	ProfitFactor float64         `json:"profit_factor"`
	SharpeRatio  float64         `json:"sharpe_ratio"`
	SortinoRatio float64         `json:"sortino_ratio"`
	MaxDrawdown  float64         `json:"max_drawdown"`
	Beta         *float64        `json:"beta,omitempty"`
	Alpha        *float64        `json:"alpha,omitempty"`
	WindowStart  time.Time       `json:"window_start"`
	WindowEnd    time.Time       `json:"window_end"`
}

// PortfolioPerformance holds snapshot-derived statistics for one
// portfolio over a timeframe.
type PortfolioPerformance struct {
	PortfolioID  string          `json:"portfolio_id"`
	Snapshots    int             `json:"snapshots"`
	StartValue   decimal.Decimal `json:"start_value"`
	EndValue     decimal.Decimal `json:"end_value"`
	TotalReturn  float64         `json:"total_return"`
	SharpeRatio  float64         `json:"sharpe_ratio"`
	SortinoRatio float64         `json:"sortino_ratio"`
	MaxDrawdown  float64         `json:"max_drawdown"`
}

// PerformanceReport combines strategy and portfolio statistics into a
// single timestamped document.
type PerformanceReport struct {
	ReportID    string               `json:"report_id"`
	StrategyID  string               `json:"strategy_id"`
	PortfolioID string               `json:"portfolio_id"`
	Strategy    StrategyPerformance  `json:"strategy"`
	Portfolio   PortfolioPerformance `json:"portfolio"`
	GeneratedAt time.Time            `json:"generated_at"`
}
