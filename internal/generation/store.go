// Package generation keeps computed generations in memory, keyed by job id.
//
// A generation is immutable once stored. Entries expire after a TTL, are
// bounded in number, and can be released explicitly. The most recent
// generation is also reachable without an id through an atomically swapped
// pointer, so unkeyed readers see one whole generation or nothing.
package generation

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

// Generation is one scaled pattern with its derived layout.
type Generation struct {
	ID          string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Spec        tiling.LayoutSpec
	Dims        tiling.Dimensions
	Scaled      *image.NRGBA
	Format      string
	Fingerprint uint64
}

// EvictFunc is called when a generation leaves the store for any reason.
// It runs with the store's internal lock held and must not call back into
// the store.
type EvictFunc func(g *Generation, reason string)

type Option func(*Store)

func WithEvictFunc(f EvictFunc) Option {
	return func(s *Store) { s.onEvict = f }
}

type Store struct {
	ttl     time.Duration
	lru     *expirable.LRU[string, *Generation]
	latest  atomic.Pointer[Generation]
	onEvict EvictFunc
	now     func() time.Time

	// ids currently inside Release, so the evict callback can label them
	releasing sync.Map
}

// New returns a store holding at most capacity generations, each for ttl.
// capacity <= 0 means unbounded and ttl <= 0 means no expiry.
func New(capacity int, ttl time.Duration, opts ...Option) *Store {
	if capacity < 0 {
		capacity = 0
	}
	if ttl < 0 {
		ttl = 0
	}
	s := &Store{ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.lru = expirable.NewLRU[string, *Generation](capacity, s.evicted, ttl)
	return s
}

// NewID returns a fresh job id.
func NewID() string { return uuid.NewString() }

// Put stores g under g.ID (assigning one when empty) and makes it the
// latest generation. g must not be modified afterwards.
func (s *Store) Put(g *Generation) *Generation {
	if g.ID == "" {
		g.ID = NewID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	if s.ttl > 0 && g.ExpiresAt.IsZero() {
		g.ExpiresAt = g.CreatedAt.Add(s.ttl)
	}
	s.lru.Add(g.ID, g)
	s.latest.Store(g)
	return g
}

// Get returns the generation stored under id.
func (s *Store) Get(id string) (*Generation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.JobNotFound(id)
	}
	g, ok := s.lru.Get(id)
	if !ok {
		return nil, apperr.JobNotFound(id)
	}
	return g, nil
}

// Latest returns the most recently stored generation that is still live.
func (s *Store) Latest() (*Generation, error) {
	g := s.latest.Load()
	if g == nil {
		return nil, apperr.NoLayout()
	}
	if _, ok := s.lru.Peek(g.ID); !ok {
		s.latest.CompareAndSwap(g, nil)
		return nil, apperr.NoLayout()
	}
	return g, nil
}

// Release drops the generation stored under id. It reports whether one
// was present.
func (s *Store) Release(id string) bool {
	s.releasing.Store(id, struct{}{})
	defer s.releasing.Delete(id)
	return s.lru.Remove(id)
}

func (s *Store) Len() int { return s.lru.Len() }

func (s *Store) evicted(id string, g *Generation) {
	s.latest.CompareAndSwap(g, nil)
	if s.onEvict == nil {
		return
	}
	reason := "evicted"
	if _, ok := s.releasing.Load(id); ok {
		reason = "released"
	} else if s.ttl > 0 && !s.now().Before(g.ExpiresAt) {
		reason = "expired"
	}
	s.onEvict(g, reason)
}
