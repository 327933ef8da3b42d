package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rewards-ledger/internal/logger"
	"rewards-ledger/internal/models"
)

const keyPrefix = "referral_stats:"

// StatsCache keeps referral statistics in Redis for the UI read path
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStatsCache connects to Redis and verifies the connection
func NewStatsCache(redisURL string, ttl time.Duration, log zerolog.Logger) (*StatsCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info().Str("redis_addr", opt.Addr).Msg("Connected to Redis stats cache")

	return &StatsCache{
		client: client,
		ttl:    ttl,
		logger: logger.WithComponent(log, "stats_cache"),
	}, nil
}

// Get returns cached stats; ok is false on a miss
func (c *StatsCache) Get(ctx context.Context, accountID string) (*models.ReferralStats, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+accountID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read stats cache: %w", err)
	}

	var stats models.ReferralStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		// a corrupt entry is treated as a miss and overwritten on the next Set
		c.logger.Warn().Err(err).Str("account_id", accountID).Msg("Discarding unreadable stats entry")
		return nil, false, nil
	}
	return &stats, true, nil
}

// Set stores stats for the configured TTL
func (c *StatsCache) Set(ctx context.Context, stats *models.ReferralStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+stats.AccountID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write stats cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached stats of an account
func (c *StatsCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, keyPrefix+accountID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool
func (c *StatsCache) Close() error {
	return c.client.Close()
}
