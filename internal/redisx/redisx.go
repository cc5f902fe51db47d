// Package redisx is a thin go-redis wrapper shared by the valuation response
// cache and the Redis snapshot sink.
package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Client wraps a go-redis client.
type Client struct {
	Rdb *redis.Client
}

// New connects lazily to addr.
func New(addr, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Client{Rdb: rdb}
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return eris.Wrap(c.Rdb.Ping(ctx).Err(), "redisx: ping")
}

// Get returns the value at key. A missing key reports ok=false with no error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.Rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "redisx: get %s", key)
	}
	return b, true, nil
}

// Set stores val at key. ttl <= 0 keeps the key until deleted.
func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return eris.Wrapf(c.Rdb.Set(ctx, key, val, ttl).Err(), "redisx: set %s", key)
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Rdb.Close()
}
