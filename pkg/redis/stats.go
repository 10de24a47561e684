package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/models"
)

// StatsCache stores computed statistics as JSON with a ttl.
type StatsCache struct {
	client    *Client
	keyPrefix string
	ttl       time.Duration
}

func NewStatsCache(client *Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, keyPrefix: "contacts:stats:", ttl: ttl}
}

func (c *StatsCache) key(organizationID string) string {
	return c.keyPrefix + organizationID
}

// GetStatistics returns false when nothing is cached.
func (c *StatsCache) GetStatistics(ctx context.Context, organizationID string) (*models.Statistics, bool, error) {
	raw, err := c.client.rdb.Get(ctx, c.key(organizationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats models.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

func (c *StatsCache) SetStatistics(ctx context.Context, organizationID string, stats *models.Statistics) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.rdb.Set(ctx, c.key(organizationID), raw, c.ttl).Err()
}

func (c *StatsCache) InvalidateStatistics(ctx context.Context, organizationID string) error {
	return c.client.rdb.Del(ctx, c.key(organizationID)).Err()
}
