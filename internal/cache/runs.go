package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/pixgen/pkg/models"
)

// PutRun stores the JSON snapshot of a run under RunKey.
func (c *RedisCache) PutRun(ctx context.Context, run *models.Run, ttl time.Duration) error {
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", run.ID, err)
	}
	return c.client.Set(ctx, RunKey(run.ID), raw, ttl).Err()
}

// GetRun reads a run snapshot. A snapshot that no longer decodes is an error,
// not a miss.
func (c *RedisCache) GetRun(ctx context.Context, runID uuid.UUID) (*models.Run, bool, error) {
	raw, err := c.client.Get(ctx, RunKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var run models.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, false, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &run, true, nil
}

func (c *RedisCache) SetRunStatus(ctx context.Context, runID uuid.UUID, status string, ttl time.Duration) error {
	return c.client.Set(ctx, RunStatusKey(runID), status, ttl).Err()
}

func (c *RedisCache) GetRunStatus(ctx context.Context, runID uuid.UUID) (string, bool, error) {
	status, err := c.client.Get(ctx, RunStatusKey(runID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return status, true, nil
}

// ClearRunStatus drops the live status once the run has a snapshot.
func (c *RedisCache) ClearRunStatus(ctx context.Context, runID uuid.UUID) error {
	return c.client.Del(ctx, RunStatusKey(runID)).Err()
}
