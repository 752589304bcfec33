// Package cache stores encoded panels so repeat downloads skip compositing.
package cache

import "time"

type Interface interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, val []byte, ttl time.Duration) error
	Del(keys ...string) error
}

// Pinger is implemented by caches backed by a remote service.
type Pinger interface {
	Ping() error
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(string, []byte, time.Duration) error { return nil }
func (Noop) Del(...string) error { return nil }
