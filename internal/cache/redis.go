package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/devicewatch/devicewatch/internal/store"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent. Callers fall back to the
// database, a cache failure never fails a request.
var ErrMiss = errors.New("cache miss")

// HeartbeatCache keeps the latest heartbeat per device in Redis so the
// hot "current status" reads skip the database.
type HeartbeatCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHeartbeatCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*HeartbeatCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &HeartbeatCache{client: client, ttl: ttl}, nil
}

func latestKey(deviceID string) string {
	return "heartbeat:latest:" + deviceID
}

// SetLatest stores the most recent heartbeat for a device. A nil receiver
// is a no-op so the cache can be left unconfigured.
func (c *HeartbeatCache) SetLatest(ctx context.Context, hb store.Heartbeat) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}
	return c.client.Set(ctx, latestKey(hb.DeviceID), data, c.ttl).Err()
}

func (c *HeartbeatCache) GetLatest(ctx context.Context, deviceID string) (store.Heartbeat, error) {
	if c == nil {
		return store.Heartbeat{}, ErrMiss
	}

	data, err := c.client.Get(ctx, latestKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Heartbeat{}, ErrMiss
		}
		return store.Heartbeat{}, fmt.Errorf("failed to get heartbeat: %w", err)
	}

	var hb store.Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return store.Heartbeat{}, fmt.Errorf("failed to unmarshal heartbeat: %w", err)
	}
	return hb, nil
}

// Invalidate drops the cached heartbeat, used when a device is deleted.
func (c *HeartbeatCache) Invalidate(ctx context.Context, deviceIDs ...string) error {
	if c == nil || len(deviceIDs) == 0 {
		return nil
	}

	keys := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		keys[i] = latestKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *HeartbeatCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *HeartbeatCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
