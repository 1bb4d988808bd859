// Package redis wraps go-redis/v9 for the query cache: byte values with a
// TTL and glob-based invalidation.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/config"
)

// Nil is returned by Get when the key does not exist.
const Nil = redis.Nil

const (
	dialTimeout = 5 * time.Second
	scanBatch   = 200
)

type Client struct {
	rdb *redis.Client
}

// NewClient connects to cfg.Addr and fails unless the server answers PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: dialTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the bytes stored under key, or an error matching Nil.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// FlushByPattern removes every key matching the glob pattern and returns how
// many were removed. Keys are collected with SCAN and unlinked in batches,
// so the server is never blocked by a KEYS call.
func (c *Client) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	var removed int64
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.rdb.Unlink(ctx, batch...).Result()
		removed += n
		batch = batch[:0]
		return err
	}

	iter := c.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return removed, fmt.Errorf("unlinking %s keys: %w", pattern, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning %s: %w", pattern, err)
	}
	if err := flush(); err != nil {
		return removed, fmt.Errorf("unlinking %s keys: %w", pattern, err)
	}
	return removed, nil
}

// IsNilError reports whether err means the key was not found.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
