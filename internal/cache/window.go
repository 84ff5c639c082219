package cache

import (
	"context"
	"time"
)

// CountRequest uses fixed windows aligned to the clock, so every caller that
// shares a key prefix sees the same reset time.
func (c *RedisCache) CountRequest(ctx context.Context, keyPrefix string, window time.Duration) (int64, time.Time, error) {
	start := c.now().Truncate(window)
	reset := start.Add(window)
	key := WindowKey(keyPrefix, start)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, reset)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, err
	}
	return incr.Val(), reset, nil
}
