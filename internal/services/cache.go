package services

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/anilistx/internal/cache"
)

const (
	DefaultCacheTTL   = 60 * time.Second
	defaultFetchLimit = 30 * time.Second
)

// CacheStats counts cache outcomes since creation.
//
// Shared counts misses answered by an upstream call that more than one caller was waiting on.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Shared int64 `json:"shared"`
}

// CachedCatalog decorates a [Catalog] with a TTL cache keyed by request signature and
// collapses concurrent identical requests into one upstream call.
//
// Only successful responses are stored. Values returned from a shared call are the same
// value for every caller and must not be modified.
type CachedCatalog struct {
	next         Catalog
	store        cache.Store
	ttl          time.Duration
	fetchTimeout time.Duration
	group        singleflight.Group
	logger       *log.Logger
	recorder     Recorder

	hits, misses, shared atomic.Int64
}

// CachedCatalogOption configures a [CachedCatalog].
type CachedCatalogOption func(*CachedCatalog)

// WithCacheLogger sets the logger for store failures.
func WithCacheLogger(l *log.Logger) CachedCatalogOption {
	return func(c *CachedCatalog) { c.logger = l }
}

// WithCacheRecorder sets the instrumentation sink.
func WithCacheRecorder(r Recorder) CachedCatalogOption {
	return func(c *CachedCatalog) { c.recorder = r }
}

// WithFetchTimeout bounds a shared upstream call, which outlives any single caller's context.
func WithFetchTimeout(d time.Duration) CachedCatalogOption {
	return func(c *CachedCatalog) { c.fetchTimeout = d }
}

// NewCachedCatalog wraps next, caching responses in store for ttl (default 60s).
func NewCachedCatalog(next Catalog, store cache.Store, ttl time.Duration, opts ...CachedCatalogOption) *CachedCatalog {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CachedCatalog{
		next:         next,
		store:        store,
		ttl:          ttl,
		fetchTimeout: defaultFetchLimit,
		logger:       log.New(io.Discard),
		recorder:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedCatalog) SearchAnime(ctx context.Context, params SearchParams) (*Page[Anime], error) {
	req := searchRequest(params)
	return cached(ctx, c, req, func(ctx context.Context) (*Page[Anime], error) {
		return c.next.SearchAnime(ctx, params)
	})
}

func (c *CachedCatalog) GetAnimeByID(ctx context.Context, id int) (*Anime, error) {
	req, err := animeRequest(id)
	if err != nil {
		return nil, err
	}
	return cached(ctx, c, req, func(ctx context.Context) (*Anime, error) {
		return c.next.GetAnimeByID(ctx, id)
	})
}

func (c *CachedCatalog) GetTopAnime(ctx context.Context, filter TopFilter, page, limit int) (*Page[Anime], error) {
	req, err := topRequest(filter, page, limit)
	if err != nil {
		return nil, err
	}
	return cached(ctx, c, req, func(ctx context.Context) (*Page[Anime], error) {
		return c.next.GetTopAnime(ctx, filter, page, limit)
	})
}

func (c *CachedCatalog) GetSeasonalAnime(ctx context.Context, year int, season Season, page, limit int) (*Page[Anime], error) {
	req, err := seasonalRequest(year, season, page, limit)
	if err != nil {
		return nil, err
	}
	return cached(ctx, c, req, func(ctx context.Context) (*Page[Anime], error) {
		return c.next.GetSeasonalAnime(ctx, year, season, page, limit)
	})
}

func (c *CachedCatalog) GetAnimeRecommendations(ctx context.Context, id int) ([]Recommendation, error) {
	req, err := recommendationsRequest(id)
	if err != nil {
		return nil, err
	}
	return cached(ctx, c, req, func(ctx context.Context) ([]Recommendation, error) {
		return c.next.GetAnimeRecommendations(ctx, id)
	})
}

func (c *CachedCatalog) GetGenres(ctx context.Context) ([]Resource, error) {
	return cached(ctx, c, genresRequest(), func(ctx context.Context) ([]Resource, error) {
		return c.next.GetGenres(ctx)
	})
}

// GetRandomAnime is never cached.
func (c *CachedCatalog) GetRandomAnime(ctx context.Context) (*Anime, error) {
	return c.next.GetRandomAnime(ctx)
}

// Stats returns the hit, miss and shared-call counters.
func (c *CachedCatalog) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Shared: c.shared.Load(),
	}
}

// Shared reports whether the cache is visible to other processes, as with a redis store.
func (c *CachedCatalog) Shared() bool {
	return cache.Shared(c.store)
}

// Invalidate drops a single cached response by signature (e.g. "/anime/1").
func (c *CachedCatalog) Invalidate(ctx context.Context, signature string) error {
	return c.store.Delete(ctx, signature)
}

// Purge drops every cached response.
func (c *CachedCatalog) Purge(ctx context.Context) error {
	return c.store.Purge(ctx)
}

// cached serves req from the store, or runs fetch once per signature across concurrent callers.
//
// The upstream call is detached from ctx so one caller giving up does not fail the others;
// each caller still returns as soon as its own ctx ends.
func cached[T any](ctx context.Context, c *CachedCatalog, req request, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	key := req.signature()

	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("cache read failed", "key", key, "error", err)
	case ok:
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			c.hits.Add(1)
			c.recorder.CacheResult(req.op, "hit")
			return v, nil
		}
		c.logger.Warn("dropping undecodable cache entry", "key", key)
		_ = c.store.Delete(ctx, key)
	}

	c.misses.Add(1)
	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(v); err != nil {
			c.logger.Warn("cache encode failed", "key", key, "error", err)
		} else if err := c.store.Set(fctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		c.recorder.CacheResult(req.op, "miss")
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
			c.recorder.CacheResult(req.op, "shared")
		} else {
			c.recorder.CacheResult(req.op, "miss")
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
