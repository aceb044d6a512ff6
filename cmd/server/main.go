package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/quantfork/tradeflow/internal/analytics"
	"github.com/quantfork/tradeflow/internal/auth"
	"github.com/quantfork/tradeflow/internal/cache"
	"github.com/quantfork/tradeflow/internal/config"
	"github.com/quantfork/tradeflow/internal/database"
	"github.com/quantfork/tradeflow/internal/ledger"
	"github.com/quantfork/tradeflow/internal/lifecycle"
	"github.com/quantfork/tradeflow/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the order lifecycle and analytics server
// with graceful shutdown support
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}
	ledgerDB := ledger.NewDatabase(db)

	// Initialize the order cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	orderCache := cache.NewOrderCache(redisClient)

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	lifecycleService := lifecycle.NewService(
		ledgerDB,
		orderCache,
		time.Duration(cfg.Orders.CacheTTLSeconds)*time.Second,
	)
	lifecycleHandlers := lifecycle.NewGinHandlers(lifecycleService)

	// Rebuild the active-order index from the ledger before serving
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := lifecycleService.Restore(restoreCtx); err != nil {
		restoreCancel()
		zlog.Fatal().Err(err).Msg("Failed to restore active orders")
	}
	restoreCancel()

	analyticsEngine := analytics.NewEngine(ledgerDB, ledgerDB, cfg.Analytics.RiskFreeRate)

	// Create and start the analytics report refresher
	refresher := analytics.NewRefresher(
		analyticsEngine,
		ledgerDB,
		time.Duration(cfg.Analytics.UpdateIntervalSeconds)*time.Second,
	)
	analyticsHandlers := analytics.NewGinHandlers(analyticsEngine, ledgerDB, refresher)
	refresherCtx, refresherCancel := context.WithCancel(context.Background())
	defer refresherCancel()

	go refresher.Start(refresherCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.Auth.JWTSecret, authHandlers, lifecycleHandlers, analyticsHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Analytics routes: Protected by JWT authentication
// - Internal routes: Ingestion endpoints, protected by internal auth
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	lifecycleHandlers *lifecycle.GinHandlers,
	analyticsHandlers *analytics.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", lifecycleHandlers.CreateOrderHandler())
			orders.GET("", lifecycleHandlers.ActiveOrdersHandler())
			orders.DELETE("/:order_id", lifecycleHandlers.CancelOrderHandler())
			orders.PATCH("/:order_id/status", lifecycleHandlers.UpdateOrderStatusHandler())
		}

		// Analytics routes
		analyticsGroup := v1.Group("/analytics")
		analyticsGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			analyticsGroup.GET("/strategies/:strategy_id", analyticsHandlers.StrategyPerformanceHandler())
			analyticsGroup.GET("/portfolios/:portfolio_id", analyticsHandlers.PortfolioPerformanceHandler())
			analyticsGroup.GET("/report", analyticsHandlers.ReportHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/trades", analyticsHandlers.RecordTradeHandler())
			internal.POST("/snapshots", analyticsHandlers.RecordSnapshotHandler())
		}
	}
}
