package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OverviewCache is an optional redis read-through cache for overview
// aggregates. A nil *OverviewCache or nil client disables caching entirely;
// cache failures degrade to recomputation, never to request errors.
type OverviewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewOverviewCache creates a cache with the given TTL. client may be nil.
func NewOverviewCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *OverviewCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &OverviewCache{client: client, ttl: ttl, logger: logger}
}

func (c *OverviewCache) key(lookbackDays int) string {
	return fmt.Sprintf("verification:overview:%d", lookbackDays)
}

// Get returns a cached overview, or (nil, false) on miss, disabled cache,
// or any redis error.
func (c *OverviewCache) Get(ctx context.Context, lookbackDays int) (*Overview, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key(lookbackDays)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Overview cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var overview Overview
	if err := json.Unmarshal(raw, &overview); err != nil {
		return nil, false
	}
	return &overview, true
}

// Set stores an overview; errors are logged and dropped.
func (c *OverviewCache) Set(ctx context.Context, lookbackDays int, overview *Overview) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(overview)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(lookbackDays), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Overview cache write failed", zap.Error(err))
	}
}
