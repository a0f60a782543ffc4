package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayProtector guards against sending duplicate deliveries within a TTL.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayProtector claims delivery keys with SETNX.
type RedisReplayProtector struct {
	Client *redis.Client
	Prefix string
}

// Acquire claims key for ttl. It reports false when the key was already claimed.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, r.key(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release drops the claim so a failed delivery can be retried.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, r.key(key)).Err()
}

func (r RedisReplayProtector) key(key string) string {
	if r.Prefix == "" {
		return "wh:" + key
	}
	return r.Prefix + ":wh:" + key
}
