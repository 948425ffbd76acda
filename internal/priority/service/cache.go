package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"aidchain/internal/platform/redis"
	"aidchain/internal/priority/models"
)

const (
	urgentSnapshotKey = "aidchain:priority:urgent"
	urgentSnapshotTTL = 2 * time.Hour
)

// Cache stores the urgent-case snapshot between scans. A miss is not an
// error; the service falls back to a live computation.
type Cache interface {
	GetSnapshot(ctx context.Context) ([]models.UrgentCase, bool, error)
	SetSnapshot(ctx context.Context, cases []models.UrgentCase) error
}

// RedisCache keeps the urgent snapshot in redis under a fixed key with a
// TTL, so a stalled scheduler ages the snapshot out instead of serving it
// forever.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetSnapshot(ctx context.Context) ([]models.UrgentCase, bool, error) {
	raw, err := c.client.Get(ctx, urgentSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get urgent snapshot: %w", err)
	}

	var cases []models.UrgentCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, false, fmt.Errorf("unmarshal urgent snapshot: %w", err)
	}
	return cases, true, nil
}

func (c *RedisCache) SetSnapshot(ctx context.Context, cases []models.UrgentCase) error {
	raw, err := json.Marshal(cases)
	if err != nil {
		return fmt.Errorf("marshal urgent snapshot: %w", err)
	}
	if err := c.client.Set(ctx, urgentSnapshotKey, raw, urgentSnapshotTTL).Err(); err != nil {
		return fmt.Errorf("set urgent snapshot: %w", err)
	}
	return nil
}
