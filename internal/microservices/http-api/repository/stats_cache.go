package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"villagehub/internal/microservices/http-api/models"

	"github.com/redis/go-redis/v9"
)

// StatsCache is a read-through cache in front of DeliveryRepository.Stats.
//
// Entries are versioned per admin. Get reports the generation it looked under, Set stores
// under that generation, and Invalidate moves the admin to a new one. A Set computed from a
// read that raced an invalidation therefore lands on a key nobody reads again.
type StatsCache interface {
	Get(ctx context.Context, adminID string) (stats models.DeliveryStats, gen uint64, ok bool)
	Set(ctx context.Context, adminID string, gen uint64, stats models.DeliveryStats)
	Invalidate(ctx context.Context, adminIDs ...string)
}

// genRetention keeps a generation counter alive well past the entries written under it,
// so a counter never resets while an old entry for generation 0 could still be live.
const genRetention = 24 * time.Hour

// RedisStatsCache keeps per-admin delivery stats in redis as JSON strings.
// A nil receiver or nil client turns every call into a miss/no-op so callers can run without redis.
type RedisStatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStatsCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStatsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStatsCache{client: client, ttl: ttl, logger: logger}
}

func statsKey(adminID string, gen uint64) string {
	return fmt.Sprintf("notifications:stats:admin:%s:%d", adminID, gen)
}

func genKey(adminID string) string {
	return fmt.Sprintf("notifications:stats:gen:%s", adminID)
}

func (c *RedisStatsCache) Get(ctx context.Context, adminID string) (models.DeliveryStats, uint64, bool) {
	var stats models.DeliveryStats
	if c == nil || c.client == nil {
		return stats, 0, false
	}
	gen, err := c.client.Get(ctx, genKey(adminID)).Uint64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("stats_cache_get_failed", "admin_id", adminID, "error", err.Error())
		return stats, 0, false
	}
	raw, err := c.client.Get(ctx, statsKey(adminID, gen)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("stats_cache_get_failed", "admin_id", adminID, "error", err.Error())
		}
		return stats, gen, false
	}
	if err := json.Unmarshal(raw, &stats); err != nil {
		c.logger.Warn("stats_cache_corrupt_entry", "admin_id", adminID, "error", err.Error())
		return stats, gen, false
	}
	return stats, gen, true
}

func (c *RedisStatsCache) Set(ctx context.Context, adminID string, gen uint64, stats models.DeliveryStats) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey(adminID, gen), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("stats_cache_set_failed", "admin_id", adminID, "error", err.Error())
	}
}

// Invalidate bumps the generation of each admin; entries of older generations expire on their own.
func (c *RedisStatsCache) Invalidate(ctx context.Context, adminIDs ...string) {
	if c == nil || c.client == nil || len(adminIDs) == 0 {
		return
	}
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range adminIDs {
			pipe.Incr(ctx, genKey(id))
			pipe.Expire(ctx, genKey(id), c.ttl+genRetention)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("stats_cache_invalidate_failed", "admins", len(adminIDs), "error", err.Error())
	}
}

// Close releases the redis client.
func (c *RedisStatsCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
