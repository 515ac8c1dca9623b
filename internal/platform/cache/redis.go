// Package cache wraps a Redis client for byte-valued read-through caching.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache miss")

// Redis is a thin key/value cache. A nil *Redis is valid and behaves as an
// always-empty cache, so callers can run without Redis configured.
type Redis struct {
	c      *redis.Client
	prefix string
}

// New connects to the Redis server at url (redis://host:port/db). An empty
// url returns a nil cache.
func New(ctx context.Context, url, prefix string) (*Redis, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{c: c, prefix: prefix}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(c *redis.Client, prefix string) *Redis {
	return &Redis{c: c, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

// Get returns ErrMiss when the key is absent.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if r == nil {
		return nil, ErrMiss
	}
	val, err := r.c.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r == nil {
		return nil
	}
	return r.c.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r == nil {
		return nil
	}
	return r.c.Del(ctx, r.key(key)).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.c.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r == nil {
		return nil
	}
	return r.c.Close()
}
