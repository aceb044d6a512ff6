// Package cache mirrors active-order state into Redis for low-latency
// reads. The cache is best-effort and lossy: entries carry an advisory
// TTL and may be evicted early, so it is never treated as authoritative.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantfork/tradeflow/internal/types"
	"github.com/redis/go-redis/v9"
)

const orderKeyPrefix = "order:"

type OrderCache struct {
	client redis.UniversalClient
}

func NewOrderCache(client redis.UniversalClient) *OrderCache {
	return &OrderCache{client: client}
}

// Set stores an order under its id with the given TTL.
func (c *OrderCache) Set(ctx context.Context, order *types.Order, ttl time.Duration) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshalling order %s: %w", order.OrderID, err)
	}
	return c.client.Set(ctx, orderKeyPrefix+order.OrderID, data, ttl).Err()
}

// Get returns the cached order, or nil when the entry is absent or
// already evicted.
func (c *OrderCache) Get(ctx context.Context, orderID string) (*types.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+orderID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var order types.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshalling cached order %s: %w", orderID, err)
	}
	return &order, nil
}

func (c *OrderCache) Delete(ctx context.Context, orderID string) error {
	return c.client.Del(ctx, orderKeyPrefix+orderID).Err()
}
