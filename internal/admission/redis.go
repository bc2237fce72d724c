package admission

import (
	"context"
	"time"

	"storefront-service/internal/redisclient"
)

// RedisCounters backs the gate with Redis fixed-window counters so limits
// hold across horizontally scaled instances.
type RedisCounters struct {
	client *redisclient.Client
}

// NewRedisCounters wraps a Redis client as a counter store
func NewRedisCounters(client *redisclient.Client) *RedisCounters {
	return &RedisCounters{client: client}
}

// Incr implements Counters
func (r *RedisCounters) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	return r.client.IncrWindow(ctx, "admission:"+key, window)
}

// Count implements Counters
func (r *RedisCounters) Count(ctx context.Context, key string) (int64, error) {
	return r.client.WindowCount(ctx, "admission:"+key)
}
