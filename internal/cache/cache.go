// Package cache keeps short-lived run state and request counters in Redis.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// Cache holds what the API reads on its hot path: finished run snapshots,
// live statuses of in-flight runs, and per-key request counters.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	Close() error

	PutRun(ctx context.Context, run *models.Run, ttl time.Duration) error
	GetRun(ctx context.Context, runID uuid.UUID) (*models.Run, bool, error)
	SetRunStatus(ctx context.Context, runID uuid.UUID, status string, ttl time.Duration) error
	GetRunStatus(ctx context.Context, runID uuid.UUID) (string, bool, error)
	ClearRunStatus(ctx context.Context, runID uuid.UUID) error

	// CountRequest bumps the counter for keyPrefix in the current window and
	// returns the new count together with the moment the window closes.
	CountRequest(ctx context.Context, keyPrefix string, window time.Duration) (int64, time.Time, error)
}

// RedisCache is the go-redis backed Cache.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCache connects lazily to the Redis instance at redisURL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts), now: time.Now}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
