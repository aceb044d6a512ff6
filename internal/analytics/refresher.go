package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/quantfork/tradeflow/internal/ledger"
	"github.com/quantfork/tradeflow/internal/types"
	"github.com/rs/zerolog/log"
)

// target is a strategy/portfolio pair whose report is kept fresh.
type target struct {
	strategyID  string
	portfolioID string
}

// Refresher periodically regenerates performance reports for tracked
// strategy/portfolio pairs and archives them in the ledger.
type Refresher struct {
	engine   *Engine
	db       *ledger.Database
	interval time.Duration

	mu      sync.Mutex
	targets map[target]struct{}
}

func NewRefresher(engine *Engine, db *ledger.Database, interval time.Duration) *Refresher {
	return &Refresher{
		engine:   engine,
		db:       db,
		interval: interval,
		targets:  make(map[target]struct{}),
	}
}

// Track registers a strategy/portfolio pair for periodic report
// generation. Tracking the same pair twice is a no-op.
func (r *Refresher) Track(strategyID, portfolioID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[target{strategyID: strategyID, portfolioID: portfolioID}] = struct{}{}
}

// Start begins the report refresh loop
func (r *Refresher) Start(ctx context.Context) {
	logger := log.With().Str("component", "analytics_refresher").Logger()
	logger.Info().Dur("interval", r.interval).Msg("starting analytics refresher")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down analytics refresher")
			return
		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

func (r *Refresher) refreshAll(ctx context.Context) {
	logger := log.With().Str("component", "analytics_refresher").Logger()

	r.mu.Lock()
	pairs := make([]target, 0, len(r.targets))
	for t := range r.targets {
		pairs = append(pairs, t)
	}
	r.mu.Unlock()

	for _, pair := range pairs {
		report, err := r.engine.GeneratePerformanceReport(ctx, pair.strategyID, pair.portfolioID)
		if err != nil {
			logger.Error().
				Err(err).
				Str("strategy_id", pair.strategyID).
				Str("portfolio_id", pair.portfolioID).
				Msg("failed to generate report")
			continue
		}

		payload, err := json.Marshal(report)
		if err != nil {
			logger.Error().Err(err).Str("report_id", report.ReportID).Msg("failed to serialize report")
			continue
		}

		record := &types.ReportRecord{
			ReportID:    report.ReportID,
			StrategyID:  report.StrategyID,
			PortfolioID: report.PortfolioID,
			Payload:     string(payload),
			GeneratedAt: report.GeneratedAt,
		}
		if err := r.db.SaveReport(ctx, record); err != nil {
			logger.Error().Err(err).Str("report_id", report.ReportID).Msg("failed to archive report")
			continue
		}

		logger.Debug().
			Str("report_id", report.ReportID).
			Str("strategy_id", pair.strategyID).
			Msg("report refreshed")
	}
}
