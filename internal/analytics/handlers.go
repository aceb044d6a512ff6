package analytics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quantfork/tradeflow/internal/ledger"
	"github.com/quantfork/tradeflow/internal/types"
	"github.com/quantfork/tradeflow/pkg/response"
	"github.com/shopspring/decimal"
)

// GinHandlers contains HTTP handlers for analytics endpoints and the
// internal ingestion routes that feed them.
type GinHandlers struct {
	engine    *Engine
	db        *ledger.Database
	refresher *Refresher
}

// NewGinHandlers creates a new set of HTTP handlers for analytics endpoints
func NewGinHandlers(engine *Engine, db *ledger.Database, refresher *Refresher) *GinHandlers {
	return &GinHandlers{
		engine:    engine,
		db:        db,
		refresher: refresher,
	}
}

// StrategyPerformanceHandler handles GET requests for strategy metrics
// URL parameter: strategy_id; optional query parameters start and end
// as RFC3339 timestamps (default: full history up to now)
func (h *GinHandlers) StrategyPerformanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		strategyID := c.Param("strategy_id")
		if strategyID == "" {
			response.BadRequest(c, "Strategy ID is required")
			return
		}

		var start time.Time
		end := time.Now()
		if raw := c.Query("start"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(c, "start must be an RFC3339 timestamp")
				return
			}
			start = parsed
		}
		if raw := c.Query("end"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.BadRequest(c, "end must be an RFC3339 timestamp")
				return
			}
			end = parsed
		}

		perf, err := h.engine.CalculateStrategyPerformance(c.Request.Context(), strategyID, start, end)
		response.Handle(c, perf, err)
	}
}

// PortfolioPerformanceHandler handles GET requests for portfolio metrics
// URL parameter: portfolio_id; optional query parameter timeframe as a
// Go duration, e.g. 720h (default: full history)
func (h *GinHandlers) PortfolioPerformanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		portfolioID := c.Param("portfolio_id")
		if portfolioID == "" {
			response.BadRequest(c, "Portfolio ID is required")
			return
		}

		var timeframe time.Duration
		if raw := c.Query("timeframe"); raw != "" {
			parsed, err := time.ParseDuration(raw)
			if err != nil {
				response.BadRequest(c, "timeframe must be a duration, e.g. 720h")
				return
			}
			timeframe = parsed
		}

		perf, err := h.engine.CalculatePortfolioPerformance(c.Request.Context(), portfolioID, timeframe)
		response.Handle(c, perf, err)
	}
}

// ReportHandler handles GET requests for combined performance reports
// Query parameters: strategy_id and portfolio_id
func (h *GinHandlers) ReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		strategyID := c.Query("strategy_id")
		portfolioID := c.Query("portfolio_id")
		if strategyID == "" || portfolioID == "" {
			response.BadRequest(c, "strategy_id and portfolio_id are required")
			return
		}

		report, err := h.engine.GeneratePerformanceReport(c.Request.Context(), strategyID, portfolioID)
		if err == nil {
			// Once a pair has been asked about, keep its report fresh.
			h.refresher.Track(strategyID, portfolioID)
		}
		response.Handle(c, report, err)
	}
}

type recordTradeRequest struct {
	StrategyID   string          `json:"strategy_id" binding:"required"`
	PortfolioID  string          `json:"portfolio_id" binding:"required"`
	TokenAddress string          `json:"token_address"`
	PnL          decimal.Decimal `json:"pnl"`
	InitialValue decimal.Decimal `json:"initial_value"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// RecordTradeHandler handles POST requests recording executed trades
// Internal route; trades are append-only once recorded
func (h *GinHandlers) RecordTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordTradeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.ExecutedAt.IsZero() {
			req.ExecutedAt = time.Now()
		}

		trade := &types.Trade{
			TradeID:      uuid.New().String(),
			StrategyID:   req.StrategyID,
			PortfolioID:  req.PortfolioID,
			TokenAddress: req.TokenAddress,
			PnL:          req.PnL,
			InitialValue: req.InitialValue,
			ExecutedAt:   req.ExecutedAt,
		}

		if err := h.db.RecordTrade(c.Request.Context(), trade); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		h.refresher.Track(req.StrategyID, req.PortfolioID)

		response.Success(c, trade)
	}
}

type recordSnapshotRequest struct {
	PortfolioID string          `json:"portfolio_id" binding:"required"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Timestamp   time.Time       `json:"timestamp"`
}

// RecordSnapshotHandler handles POST requests recording portfolio
// valuations. Internal route.
func (h *GinHandlers) RecordSnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recordSnapshotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.Timestamp.IsZero() {
			req.Timestamp = time.Now()
		}

		snapshot := &types.PortfolioSnapshot{
			PortfolioID: req.PortfolioID,
			TotalValue:  req.TotalValue,
			Timestamp:   req.Timestamp,
		}

		if err := h.db.CreateSnapshot(c.Request.Context(), snapshot); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, snapshot)
	}
}
