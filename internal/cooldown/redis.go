package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cooldown:"

// Redis is a Cache backed by a shared Redis instance, for deployments where
// the store client is shared across sessions or processes. Expiry is
// delegated to the server-side TTL.
type Redis struct {
	client *redis.Client
	window time.Duration
}

// NewRedis creates a Redis cache with the given window. It pings the server
// so a misconfigured address fails at startup rather than on first submit.
func NewRedis(ctx context.Context, client *redis.Client, window time.Duration) (*Redis, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cooldown: redis ping: %w", err)
	}
	return &Redis{client: client, window: window}, nil
}

// Check implements Cache.
func (r *Redis) Check(ctx context.Context, fingerprint string) error {
	n, err := r.client.Exists(ctx, redisKeyPrefix+fingerprint).Result()
	if err != nil {
		return fmt.Errorf("cooldown: redis exists: %w", err)
	}
	if n > 0 {
		return ErrCooldownActive
	}
	return nil
}

// Record implements Cache.
func (r *Redis) Record(ctx context.Context, fingerprint string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+fingerprint, 1, r.window).Err(); err != nil {
		return fmt.Errorf("cooldown: redis set: %w", err)
	}
	return nil
}
