package analytics

import (
	"math"

	"github.com/quantfork/tradeflow/internal/types"
	"github.com/shopspring/decimal"
)

// tradingDaysPerYear is the convention used to annualize daily ratios.
const tradingDaysPerYear = 252

// tradeReturns converts trades into a per-trade return series. Trades
// with a zero capital basis cannot produce a return ratio and are
// excluded outright rather than replaced with zero, so they do not bias
// the variance of the series.
func tradeReturns(trades []types.Trade) []float64 {
	returns := make([]float64, 0, len(trades))
	for _, trade := range trades {
		if trade.InitialValue.IsZero() {
			continue
		}
		returns = append(returns, trade.PnL.Div(trade.InitialValue).InexactFloat64())
	}
	return returns
}

// winRate is the fraction of trades with positive PnL. 0.0 for no trades.
func winRate(trades []types.Trade) float64 {
	if len(trades) == 0 {
		return 0.0
	}
	wins := 0
	for _, trade := range trades {
		if trade.PnL.IsPositive() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// profitFactor is gross winning PnL over gross losing PnL magnitude.
// Saturates to 0.0 when gross loss is zero; this is a deliberate policy,
// not a true infinity.
func profitFactor(trades []types.Trade) float64 {
	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	for _, trade := range trades {
		switch trade.PnL.Sign() {
		case 1:
			grossProfit = grossProfit.Add(trade.PnL)
		case -1:
			grossLoss = grossLoss.Add(trade.PnL.Abs())
		}
	}
	if grossLoss.IsZero() {
		return 0.0
	}
	return grossProfit.Div(grossLoss).InexactFloat64()
}

// totalPnL sums trade PnL exactly.
func totalPnL(trades []types.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, trade := range trades {
		total = total.Add(trade.PnL)
	}
	return total
}

// excessReturns subtracts the daily risk-free rate from each return.
func excessReturns(returns []float64, annualRiskFreeRate float64) []float64 {
	dailyRiskFree := annualRiskFreeRate / tradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRiskFree
	}
	return excess
}

// sharpeRatio is the annualized mean excess return over its volatility.
// 0.0 for an empty or zero-variance series.
func sharpeRatio(returns []float64, annualRiskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	excess := excessReturns(returns, annualRiskFreeRate)
	sd := stdDev(excess)
	if sd == 0 {
		return 0.0
	}
	return mean(excess) / sd * math.Sqrt(tradingDaysPerYear)
}

// sortinoRatio is like Sharpe but with volatility measured only over
// the downside (negative excess) returns. 0.0 when the downside set is
// empty or has zero deviation.
func sortinoRatio(returns []float64, annualRiskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	excess := excessReturns(returns, annualRiskFreeRate)
	var downside []float64
	for _, e := range excess {
		if e < 0 {
			downside = append(downside, e)
		}
	}
	if len(downside) == 0 {
		return 0.0
	}
	sd := stdDev(downside)
	if sd == 0 {
		return 0.0
	}
	return mean(excess) / sd * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown is the largest peak-to-trough decline of the cumulative
// return series, as a fraction of the peak. 0.0 on empty input.
func maxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	// The peak starts at the first cumulative value, so a series that
	// opens with losses measures its decline against its own data, not
	// against a phantom starting point.
	cumulative := 1 + returns[0]
	peak := cumulative
	maxDD := 0.0
	for _, r := range returns[1:] {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// snapshotReturns derives period returns from consecutive portfolio
// valuations. Periods starting from a zero valuation are skipped.
func snapshotReturns(snapshots []types.PortfolioSnapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TotalValue
		if prev.IsZero() {
			continue
		}
		returns = append(returns, snapshots[i].TotalValue.Sub(prev).Div(prev).InexactFloat64())
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation, matching the Sharpe
// convention used throughout.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0.0
	}
	m := mean(xs)
	variance := 0.0
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)))
}
