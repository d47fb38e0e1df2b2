package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finadvisor/internal/models"
	"finadvisor/pkg/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const statsTTL = time.Minute

// Client wraps Redis for the two concerns the engine needs from it: the
// per-user generation lease and the short-lived stats cache.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func New(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))

	return &Client{
		rdb:    rdb,
		logger: logger,
	}, nil
}

// NewWithRedis wraps an existing Redis client. Used by tests.
func NewWithRedis(rdb *redis.Client, logger *zap.Logger) *Client {
	return &Client{
		rdb:    rdb,
		logger: logger,
	}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLease takes the mutual-exclusion lease for key. Returns false when
// another holder already has it. The TTL bounds how long a crashed holder
// can block subsequent runs.
func (c *Client) AcquireLease(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, time.Now().UnixNano(), ttl).Result()
}

// ReleaseLease drops the lease for key.
func (c *Client) ReleaseLease(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// GetStats returns the cached stats for the user, or (nil, nil) on a miss.
func (c *Client) GetStats(ctx context.Context, userID uuid.UUID) (*models.RecommendationStats, error) {
	data, err := c.rdb.Get(ctx, statsKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stats models.RecommendationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal cached stats: %w", err)
	}

	return &stats, nil
}

func (c *Client) SetStats(ctx context.Context, userID uuid.UUID, stats *models.RecommendationStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	return c.rdb.Set(ctx, statsKey(userID), data, statsTTL).Err()
}

func (c *Client) InvalidateStats(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, statsKey(userID)).Err()
}

func statsKey(userID uuid.UUID) string {
	return "recommendations:stats:" + userID.String()
}
