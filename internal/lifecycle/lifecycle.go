// Package lifecycle owns the in-process view of active orders and
// enforces the order state machine. The ledger is the system of record;
// the in-memory index and the cache only ever reflect writes the ledger
// has already accepted.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantfork/tradeflow/internal/ledger"
	"github.com/quantfork/tradeflow/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidOrder indicates malformed order parameters.
	ErrInvalidOrder = errors.New("invalid order parameters")
	// ErrOrderNotFound indicates the order id is not in the active index.
	// This is a normal outcome for unknown or already-archived orders.
	ErrOrderNotFound = errors.New("order not found in active index")
	// ErrInvalidTransition indicates an illegal state-machine move.
	ErrInvalidTransition = errors.New("invalid order state transition")
)

// OrderCache is the write-through mirror for active orders. Failures on
// any of these calls are logged and swallowed; the cache must never fail
// an otherwise-successful durable write.
type OrderCache interface {
	Set(ctx context.Context, order *types.Order, ttl time.Duration) error
	Delete(ctx context.Context, orderID string) error
}

// Service manages order state transitions across the ledger, the cache
// and the active-order index.
type Service struct {
	db       *ledger.Database
	cache    OrderCache
	cacheTTL time.Duration

	// mu serializes writes so the ledger update and the index mutation
	// for one order can never interleave with another writer on the
	// same id. Reads take it briefly to copy.
	mu     sync.Mutex
	active map[string]types.Order
}

// NewService creates a lifecycle service. cacheTTL bounds how long an
// active order stays mirrored in the cache.
func NewService(db *ledger.Database, cache OrderCache, cacheTTL time.Duration) *Service {
	return &Service{
		db:       db,
		cache:    cache,
		cacheTTL: cacheTTL,
		active:   make(map[string]types.Order),
	}
}

// Restore rebuilds the active-order index from the ledger. Called once
// at startup before the service accepts traffic.
func (s *Service) Restore(ctx context.Context) error {
	orders, err := s.db.GetActiveOrders(ctx)
	if err != nil {
		return fmt.Errorf("loading active orders: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range orders {
		s.active[order.OrderID] = order
	}

	log.Info().
		Str("component", "lifecycle").
		Int("active_orders", len(orders)).
		Msg("restored active order index")
	return nil
}

// CreateOrder validates and persists a new PENDING order, then mirrors
// it into the cache and the active index. The ledger write is the
// commit point: if it fails nothing else happens, and if only the cache
// write fails the order is still created.
func (s *Service) CreateOrder(ctx context.Context, tokenAddress string, amount, price decimal.Decimal, orderType string) (*types.Order, error) {
	logger := log.With().Str("component", "lifecycle").Logger()

	if tokenAddress == "" {
		return nil, fmt.Errorf("%w: token address is required", ErrInvalidOrder)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidOrder, amount)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: price cannot be negative, got %s", ErrInvalidOrder, price)
	}

	now := time.Now()
	order := types.Order{
		OrderID:      uuid.New().String(),
		TokenAddress: tokenAddress,
		Amount:       amount,
		Price:        price,
		OrderType:    orderType,
		Status:       types.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.CreateOrder(ctx, &order); err != nil {
		logger.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to persist order")
		return nil, fmt.Errorf("persisting order: %w", err)
	}

	if err := s.cache.Set(ctx, &order, s.cacheTTL); err != nil {
		logger.Warn().Err(err).Str("order_id", order.OrderID).Msg("order cache write failed")
	}

	s.active[order.OrderID] = order

	logger.Info().
		Str("order_id", order.OrderID).
		Str("token_address", tokenAddress).
		Str("order_type", orderType).
		Msg("order created")
	return &order, nil
}

// CancelOrder moves a PENDING order to CANCELLED. Only orders present
// in the active index are cancellable; the service never queries the
// ledger to rediscover orders it has already evicted.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	logger := log.With().Str("component", "lifecycle").Str("order_id", orderID).Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.active[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if order.Status != types.OrderStatusPending {
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, order.Status)
	}

	// Ledger first: a crash between these steps leaves the ledger as
	// the recoverable truth.
	if err := s.db.UpdateOrderStatus(ctx, orderID, types.OrderStatusCancelled); err != nil {
		logger.Error().Err(err).Msg("failed to persist cancellation")
		return fmt.Errorf("persisting cancellation: %w", err)
	}

	if err := s.cache.Delete(ctx, orderID); err != nil {
		logger.Warn().Err(err).Msg("order cache delete failed")
	}

	delete(s.active, orderID)

	logger.Info().Msg("order cancelled")
	return nil
}

// UpdateOrderStatus writes a new status for an active order. A terminal
// status archives the order out of the index and cache; a non-terminal
// status keeps it active with a refreshed cache entry and is idempotent.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	logger := log.With().Str("component", "lifecycle").Str("order_id", orderID).Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.active[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if types.IsTerminalStatus(order.Status) {
		// Guards the invariant; terminal orders never stay indexed.
		return fmt.Errorf("%w: order already %s", ErrInvalidTransition, order.Status)
	}

	if err := s.db.UpdateOrderStatus(ctx, orderID, status); err != nil {
		logger.Error().Err(err).Str("status", status).Msg("failed to persist status update")
		return fmt.Errorf("persisting status update: %w", err)
	}

	order.Status = status
	order.UpdatedAt = time.Now()

	if types.IsTerminalStatus(status) {
		if err := s.cache.Delete(ctx, orderID); err != nil {
			logger.Warn().Err(err).Msg("order cache delete failed")
		}
		delete(s.active, orderID)
	} else {
		if err := s.cache.Set(ctx, &order, s.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("order cache refresh failed")
		}
		s.active[orderID] = order
	}

	logger.Info().Str("status", status).Msg("order status updated")
	return nil
}

// GetActiveOrders returns a snapshot of the active-order index. No
// ordering is guaranteed.
func (s *Service) GetActiveOrders() []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]types.Order, 0, len(s.active))
	for _, order := range s.active {
		orders = append(orders, order)
	}
	return orders
}

// GetOrder returns the active order for id, or nil when it is not in
// the index.
func (s *Service) GetOrder(orderID string) *types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.active[orderID]; ok {
		return &order
	}
	return nil
}
