// Package analytics reduces historical trade and portfolio data to
// performance statistics. The engine is stateless and read-only; it
// never mutates order or trade state, so concurrent report generations
// need no locking.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quantfork/tradeflow/internal/types"
	"github.com/rs/zerolog/log"
)

// reportWindow is the fixed recent window used for the portfolio half
// of a combined performance report.
const reportWindow = 30 * 24 * time.Hour

// TradeRepository is the ledger read path for executed trades.
type TradeRepository interface {
	GetStrategyTrades(ctx context.Context, strategyID string, start, end time.Time) ([]types.Trade, error)
}

// PortfolioRepository is the ledger read path for portfolio valuations,
// ascending by timestamp.
type PortfolioRepository interface {
	GetPortfolioHistory(ctx context.Context, portfolioID string) ([]types.PortfolioSnapshot, error)
}

// Engine computes performance metrics over ledger history.
type Engine struct {
	trades       TradeRepository
	portfolios   PortfolioRepository
	riskFreeRate float64 // annualized, decimal fraction
}

// NewEngine creates an analytics engine. riskFreeRate is the annualized
// risk-free rate used for Sharpe and Sortino ratios.
func NewEngine(trades TradeRepository, portfolios PortfolioRepository, riskFreeRate float64) *Engine {
	return &Engine{
		trades:       trades,
		portfolios:   portfolios,
		riskFreeRate: riskFreeRate,
	}
}

// CalculateStrategyPerformance aggregates all trades for a strategy in
// [start, end] into scalar metrics. An empty trade set yields neutral
// values, never an error.
func (e *Engine) CalculateStrategyPerformance(ctx context.Context, strategyID string, start, end time.Time) (*types.StrategyPerformance, error) {
	trades, err := e.trades.GetStrategyTrades(ctx, strategyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching strategy trades: %w", err)
	}

	returns := tradeReturns(trades)

	perf := &types.StrategyPerformance{
		StrategyID:   strategyID,
		TotalTrades:  len(trades),
		TotalPnL:     totalPnL(trades),
		WinRate:      winRate(trades),
		ProfitFactor: profitFactor(trades),
		SharpeRatio:  sharpeRatio(returns, e.riskFreeRate),
		SortinoRatio: sortinoRatio(returns, e.riskFreeRate),
		MaxDrawdown:  maxDrawdown(returns),
		// Beta and Alpha stay nil until a benchmark return series is
		// available; a constant zero here would read as a validated
		// result.
		WindowStart: start,
		WindowEnd:   end,
	}

	if len(trades) > 0 && len(returns) == 0 {
		log.Warn().
			Str("component", "analytics").
			Str("strategy_id", strategyID).
			Int("total_trades", len(trades)).
			Msg("all trades have zero capital basis; return-based metrics degraded to neutral values")
	}

	return perf, nil
}

// CalculatePortfolioPerformance derives metrics from the portfolio's
// valuation history restricted to the trailing timeframe. A
// non-positive timeframe means the full history.
func (e *Engine) CalculatePortfolioPerformance(ctx context.Context, portfolioID string, timeframe time.Duration) (*types.PortfolioPerformance, error) {
	history, err := e.portfolios.GetPortfolioHistory(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("fetching portfolio history: %w", err)
	}

	if timeframe > 0 {
		cutoff := time.Now().Add(-timeframe)
		trimmed := history[:0]
		for _, snapshot := range history {
			if !snapshot.Timestamp.Before(cutoff) {
				trimmed = append(trimmed, snapshot)
			}
		}
		history = trimmed
	}

	perf := &types.PortfolioPerformance{
		PortfolioID: portfolioID,
		Snapshots:   len(history),
	}
	if len(history) == 0 {
		return perf, nil
	}

	returns := snapshotReturns(history)

	perf.StartValue = history[0].TotalValue
	perf.EndValue = history[len(history)-1].TotalValue
	if !perf.StartValue.IsZero() {
		perf.TotalReturn = perf.EndValue.Sub(perf.StartValue).Div(perf.StartValue).InexactFloat64()
	}
	perf.SharpeRatio = sharpeRatio(returns, e.riskFreeRate)
	perf.SortinoRatio = sortinoRatio(returns, e.riskFreeRate)
	perf.MaxDrawdown = maxDrawdown(returns)

	return perf, nil
}

// GeneratePerformanceReport combines full-history strategy metrics with
// portfolio metrics over the last 30 days into a timestamped report.
func (e *Engine) GeneratePerformanceReport(ctx context.Context, strategyID, portfolioID string) (*types.PerformanceReport, error) {
	now := time.Now()

	strategy, err := e.CalculateStrategyPerformance(ctx, strategyID, time.Time{}, now)
	if err != nil {
		return nil, fmt.Errorf("strategy performance: %w", err)
	}

	portfolio, err := e.CalculatePortfolioPerformance(ctx, portfolioID, reportWindow)
	if err != nil {
		return nil, fmt.Errorf("portfolio performance: %w", err)
	}

	return &types.PerformanceReport{
		ReportID:    uuid.New().String(),
		StrategyID:  strategyID,
		PortfolioID: portfolioID,
		Strategy:    *strategy,
		Portfolio:   *portfolio,
		GeneratedAt: now,
	}, nil
}
