package redisstore

import (
	"context"
	"time"

	"github.com/mohammed-shakir/wallpanels/internal/cache"
)

type adapter struct {
	cli     *Client
	timeout time.Duration
}

var (
	_ cache.Interface = (*adapter)(nil)
	_ cache.Pinger    = (*adapter)(nil)
)

// NewCache exposes c as a cache.Interface whose operations are bounded by
// timeout (no bound when <= 0).
func NewCache(c *Client, timeout time.Duration) cache.Interface {
	return &adapter{cli: c, timeout: timeout}
}

// returns context with timeout if set
func (a *adapter) withTimeout() (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *adapter) Get(key string) ([]byte, bool, error) {
	ctx, cancel := a.withTimeout()
	defer cancel()
	return a.cli.Get(ctx, key)
}

func (a *adapter) Set(key string, val []byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	return a.cli.Set(ctx, key, val, ttl)
}

func (a *adapter) Del(keys ...string) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	return a.cli.Del(ctx, keys...)
}

func (a *adapter) Ping() error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	return a.cli.Ping(ctx)
}
