// Package cache keeps computed statistics in Redis between requests.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"todoapp/internal/stats"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a snapshot lives.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "stats:"

func snapshotKey(ownerID string) string { return keyPrefix + ownerID }

// generationKey holds a counter with no TTL: letting it expire would reset it
// and revive entries written under an older generation.
func generationKey(ownerID string) string { return keyPrefix + ownerID + ":gen" }

type entry struct {
	Version  int64          `json:"version"`
	Snapshot stats.Snapshot `json:"snapshot"`
}

type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatsCache{client: client, ttl: ttl}
}

// Connect dials addr and checks the connection with a PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the owner's current generation and the snapshot stored under
// it, or a nil snapshot when there is none.
func (c *StatsCache) Get(ctx context.Context, ownerID string) (*stats.Snapshot, int64, error) {
	vals, err := c.client.MGet(ctx, snapshotKey(ownerID), generationKey(ownerID)).Result()
	if err != nil {
		return nil, 0, err
	}

	var version int64
	if raw, ok := vals[1].(string); ok {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("decode statistics generation: %w", err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, version, nil
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, 0, fmt.Errorf("decode cached statistics: %w", err)
	}
	if e.Version != version {
		return nil, version, nil
	}
	return &e.Snapshot, version, nil
}

// Set stores s tagged with version. A write from before the latest
// Invalidate carries an old version and is ignored by Get.
func (c *StatsCache) Set(ctx context.Context, ownerID string, version int64, s stats.Snapshot) error {
	data, err := json.Marshal(entry{Version: version, Snapshot: s})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey(ownerID), data, c.ttl).Err()
}

func (c *StatsCache) Invalidate(ctx context.Context, ownerID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey(ownerID))
		pipe.Del(ctx, snapshotKey(ownerID))
		return nil
	})
	return err
}
