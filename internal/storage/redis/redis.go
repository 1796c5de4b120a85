// Package redis caches fetched tender pages.
package redis

import (
	"context"
	serrors "errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultPrefix = "tenders:page:"

type Cache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

func New(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	const op = "storage.redis.New"

	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewWithClient(rdb, ttl, DefaultPrefix), nil
}

func NewWithClient(rdb *goredis.Client, ttl time.Duration, prefix string) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, prefix: prefix}
}

// Get returns the cached page stored under key. A miss is not an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "storage.redis.Get"

	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if serrors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return data, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, data []byte) error {
	const op = "storage.redis.Set"

	if err := c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate drops every cached page.
func (c *Cache) Invalidate(ctx context.Context) error {
	const op = "storage.redis.Invalidate"

	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Cache) Close() error {
	return c.rdb.Close()
}
