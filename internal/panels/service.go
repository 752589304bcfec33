// Package panels runs generations and serves encoded panels from them.
package panels

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
	"github.com/mohammed-shakir/wallpanels/internal/cache"
	"github.com/mohammed-shakir/wallpanels/internal/cache/keys"
	"github.com/mohammed-shakir/wallpanels/internal/core/observability"
	"github.com/mohammed-shakir/wallpanels/internal/events"
	"github.com/mohammed-shakir/wallpanels/internal/generation"
	mylog "github.com/mohammed-shakir/wallpanels/internal/logger"
	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

type Config struct {
	MaxPixels      int64
	StoreCapacity  int
	StoreTTL       time.Duration
	CacheTTL       time.Duration
	CacheNamespace string
}

type Service struct {
	log    *slog.Logger
	cfg    Config
	store  *generation.Store
	cache  cache.Interface
	events events.Interface
	group  singleflight.Group

	// generations held by the store, maintained without taking its lock
	live atomic.Int64
}

// GenerateRequest is one uploaded pattern with its layout.
type GenerateRequest struct {
	Filename string
	Data     []byte
	Layout   tiling.LayoutSpec
}

func New(log *slog.Logger, cfg Config, c cache.Interface, ev events.Interface) *Service {
	if log == nil {
		log = slog.Default()
	}
	if c == nil {
		c = cache.Noop{}
	}
	if ev == nil {
		ev = events.Noop{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cfg.StoreTTL
	}
	s := &Service{log: log, cfg: cfg, cache: c, events: ev}
	s.store = generation.New(cfg.StoreCapacity, cfg.StoreTTL, generation.WithEvictFunc(s.evicted))
	return s
}

// Generate validates, decodes and scales the pattern, then stores the
// result as a new generation. Layout parameters are checked before any
// image work.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*generation.Generation, error) {
	start := time.Now()
	g, err := s.generate(ctx, req)
	if err != nil {
		observability.IncGeneration(string(apperr.KindOf(err)))
		return nil, err
	}
	observability.ObserveGenerationStage("total", time.Since(start).Seconds())
	observability.IncGeneration("ok")

	ctx = mylog.WithJobID(ctx, g.ID)
	s.log.InfoContext(ctx, "generation stored",
		"num_panels", g.Dims.NumPanels,
		"scaled_w", g.Dims.ScaledWidthPx,
		"scaled_h", g.Dims.ScaledHeightPx,
		"format", g.Format,
		"took_ms", time.Since(start).Milliseconds())

	dims := g.Dims
	s.events.Publish(events.Event{
		Type:        events.TypeCompleted,
		JobID:       g.ID,
		NumPanels:   g.Dims.NumPanels,
		Layout:      g.Spec,
		Dimensions:  &dims,
		Fingerprint: fmt.Sprintf("%016x", g.Fingerprint),
	})
	return g, nil
}

func (s *Service) generate(ctx context.Context, req GenerateRequest) (*generation.Generation, error) {
	if err := tiling.CheckExtension(req.Filename); err != nil {
		return nil, err
	}
	if err := req.Layout.Validate(); err != nil {
		return nil, err
	}
	if len(req.Data) == 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "No file provided")
	}

	t := time.Now()
	pat, err := tiling.DecodePattern(req.Data, s.cfg.MaxPixels)
	if err != nil {
		return nil, err
	}
	observability.ObserveGenerationStage("decode", time.Since(t).Seconds())

	dims, err := tiling.Calculate(pat.Width, pat.Height, req.Layout)
	if err != nil {
		return nil, err
	}
	if err := dims.CheckBudget(s.cfg.MaxPixels); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	t = time.Now()
	scaled := tiling.ScalePattern(pat.Image, dims)
	observability.ObserveGenerationStage("scale", time.Since(t).Seconds())
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	// counted before Put so a capacity eviction inside Put nets out
	s.live.Add(1)
	g := s.store.Put(&generation.Generation{
		Spec:        req.Layout,
		Dims:        dims,
		Scaled:      scaled,
		Format:      pat.Format,
		Fingerprint: tiling.Fingerprint(req.Data, req.Layout),
	})
	observability.SetStoreSize(int(s.live.Load()))
	return g, nil
}

// Latest returns the most recent live generation.
func (s *Service) Latest() (*generation.Generation, error) {
	return s.store.Latest()
}

// Job returns the generation stored under id.
func (s *Service) Job(id string) (*generation.Generation, error) {
	return s.store.Get(id)
}

// Panel returns panel n of g encoded as PNG. Concurrent requests for the
// same panel share one render.
func (s *Service) Panel(ctx context.Context, g *generation.Generation, n int) ([]byte, error) {
	if g == nil {
		return nil, apperr.NoLayout()
	}
	if !g.Dims.ValidPanel(n) {
		return nil, apperr.InvalidPanel(n, g.Dims.NumPanels)
	}
	ctx = mylog.WithJobID(ctx, g.ID)
	key := keys.Panel(s.cfg.CacheNamespace, g.Fingerprint, n)

	if b, ok, err := s.cache.Get(key); err != nil {
		observability.IncPanelCacheError()
		s.log.WarnContext(ctx, "panel cache get failed", "key", key, "err", err)
	} else if ok {
		observability.IncPanelCacheHit()
		observability.IncPanelServed("cache")
		return b, nil
	} else {
		observability.IncPanelCacheMiss()
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.render(ctx, g, n, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		observability.IncPanelServed("shared")
	} else {
		observability.IncPanelServed("render")
	}
	return v.([]byte), nil
}

func (s *Service) render(ctx context.Context, g *generation.Generation, n int, key string) ([]byte, error) {
	start := time.Now()
	img, err := tiling.ComposePanel(g.Scaled, g.Dims, n)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tiling.EncodePNG(&buf, img, g.Dims.DPI); err != nil {
		return nil, fmt.Errorf("encode panel %d: %w", n, err)
	}
	observability.ObservePanelRender(time.Since(start).Seconds())

	out := buf.Bytes()
	if err := s.cache.Set(key, out, s.cfg.CacheTTL); err != nil {
		observability.IncPanelCacheError()
		s.log.WarnContext(ctx, "panel cache set failed", "key", key, "err", err)
	}
	s.log.DebugContext(ctx, "panel rendered", "panel", n, "bytes", len(out), "took_ms", time.Since(start).Milliseconds())
	return out, nil
}

// cache keys deleted per round trip on release
const releaseBatch = 128

// Release drops the generation and its cached panels.
func (s *Service) Release(ctx context.Context, id string) error {
	g, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if !s.store.Release(id) {
		return apperr.JobNotFound(id)
	}
	for from := 1; from <= g.Dims.NumPanels; from += releaseBatch {
		to := min(from+releaseBatch-1, g.Dims.NumPanels)
		if err := s.cache.Del(keys.PanelRange(s.cfg.CacheNamespace, g.Fingerprint, from, to)...); err != nil {
			s.log.WarnContext(ctx, "panel cache cleanup failed", "job_id", id, "from", from, "err", err)
			break
		}
	}
	return nil
}

// runs under the store's lock; must not call back into the store
func (s *Service) evicted(g *generation.Generation, reason string) {
	observability.IncStoreRemoval(reason)
	observability.SetStoreSize(int(s.live.Add(-1)))

	typ := events.TypeEvicted
	switch reason {
	case "released":
		typ = events.TypeReleased
	case "expired":
		typ = events.TypeExpired
	}
	s.events.Publish(events.Event{
		Type:        typ,
		JobID:       g.ID,
		NumPanels:   g.Dims.NumPanels,
		Layout:      g.Spec,
		Fingerprint: fmt.Sprintf("%016x", g.Fingerprint),
	})
}
