// Package memstore is an in-process LRU panel cache.
package memstore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/wallpanels/internal/cache"
)

type entry struct {
	val     []byte
	expires time.Time // zero means no expiry
}

// Store keeps at most size entries. Expired entries are dropped lazily on
// read.
type Store struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	now func() time.Time
}

var _ cache.Interface = (*Store)(nil)

func New(size int) *Store {
	if size <= 0 {
		size = 64
	}
	c, _ := lru.New[string, entry](size)
	return &Store{lru: c, now: time.Now}
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (s *Store) Set(key string, val []byte, ttl time.Duration) error {
	e := entry{val: val}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.lru.Add(key, e)
	s.mu.Unlock()
	return nil
}

func (s *Store) Del(keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		s.lru.Remove(k)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Len() int { return s.lru.Len() }
