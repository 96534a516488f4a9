package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig locates the redis server used as a cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix namespaces every key so one redis database can serve
	// several deployments.
	KeyPrefix string
}

// Redis stores cache entries on a redis server, leaning on redis's
// native key expiry instead of its own sweeping.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redis and verifies the server answers before
// handing the backend out.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{client: client, prefix: cfg.KeyPrefix}, nil
}

// Get returns the value stored under key; a missing key is a plain
// miss, not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r == nil || r.client == nil {
		return nil, false, errors.New("redis cache is not initialized")
	}

	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key with ttl as the redis expiry. A
// non-positive ttl stores nothing.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return errors.New("redis cache is not initialized")
	}
	if key == "" || ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Clear removes every key starting with prefix, scanning in batches
// so large keyspaces never block the server.
func (r *Redis) Clear(ctx context.Context, prefix string) (int, error) {
	if r == nil || r.client == nil {
		return 0, errors.New("redis cache is not initialized")
	}

	pattern := r.prefix + prefix + "*"
	removed := 0

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}

// Stats counts the keys under this backend's prefix. Redis expires
// keys itself, so the expired count is always zero.
func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	if r == nil || r.client == nil {
		return Stats{}, errors.New("redis cache is not initialized")
	}

	pattern := r.prefix + "*"
	stats := Stats{}

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return stats, fmt.Errorf("redis scan %q: %w", pattern, err)
		}
		stats.Entries += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
