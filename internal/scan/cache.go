package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"evscan/pkg/platform/sentinel"
)

// LatestCache caches the most recent assessment per device for the dashboard
// status view. A cache miss or failure is never fatal; callers fall back to
// the store.
type LatestCache interface {
	GetLatest(ctx context.Context, deviceID string) (*Assessed, error)
	SetLatest(ctx context.Context, deviceID string, entry Assessed) error
	Invalidate(ctx context.Context, deviceID string) error
}

// RedisLatestCache backs LatestCache with redis. Entries expire on their own;
// writes also invalidate eagerly so a fresh ingest is visible immediately.
type RedisLatestCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLatestCache(client *redis.Client, ttl time.Duration) *RedisLatestCache {
	return &RedisLatestCache{client: client, ttl: ttl}
}

type cachedLatest struct {
	Record     ScanRecord       `json:"record"`
	Assessment HealthAssessment `json:"assessment"`
}

func latestKey(deviceID string) string {
	return "evscan:latest:" + deviceID
}

func (c *RedisLatestCache) GetLatest(ctx context.Context, deviceID string) (*Assessed, error) {
	data, err := c.client.Get(ctx, latestKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get latest assessment: %w", err)
	}
	var entry cachedLatest
	if err := json.Unmarshal(data, &entry); err != nil {
		// Treat a corrupt entry as a miss; the store remains authoritative.
		return nil, sentinel.ErrNotFound
	}
	return &Assessed{Record: entry.Record, Assessment: entry.Assessment}, nil
}

func (c *RedisLatestCache) SetLatest(ctx context.Context, deviceID string, entry Assessed) error {
	data, err := json.Marshal(cachedLatest{Record: entry.Record, Assessment: entry.Assessment})
	if err != nil {
		return fmt.Errorf("marshal latest assessment: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(deviceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set latest assessment: %w", err)
	}
	return nil
}

func (c *RedisLatestCache) Invalidate(ctx context.Context, deviceID string) error {
	if err := c.client.Del(ctx, latestKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("invalidate latest assessment: %w", err)
	}
	return nil
}
