package rbac

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares decisions between instances. Invalidation bumps a
// generation counter that is part of every entry key, so stale entries are
// never read again and simply expire.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a cache storing entries under prefix for ttl
// (5m when ttl <= 0).
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "urlguard:decisions"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) generationKey() string {
	return c.prefix + ":gen"
}

func (c *RedisCache) entryKey(generation uint64, key string) string {
	return c.prefix + ":" + strconv.FormatUint(generation, 10) + ":" + key
}

func (c *RedisCache) generation(ctx context.Context) (uint64, error) {
	gen, err := c.client.Get(ctx, c.generationKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) Get(ctx context.Context, key string) (Lookup, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return Lookup{}, err
	}
	val, err := c.client.Get(ctx, c.entryKey(gen, key)).Result()
	if errors.Is(err, redis.Nil) {
		return Lookup{Generation: gen}, nil
	}
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{Allowed: val == "1", Found: true, Generation: gen}, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, generation uint64, allowed bool) error {
	val := "0"
	if allowed {
		val = "1"
	}
	return c.client.Set(ctx, c.entryKey(generation, key), val, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, c.generationKey()).Err()
}
