package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/anilistx/internal/cache"
	"github.com/desertthunder/anilistx/internal/shared"
)

func newTestCachedCatalog(next Catalog, ttl time.Duration, opts ...CachedCatalogOption) *CachedCatalog {
	return NewCachedCatalog(next, cache.NewMemoryStore(16, time.Minute), ttl, opts...)
}

func TestCachedCatalog(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory Store Is Not Shared", func(t *testing.T) {
		if newTestCachedCatalog(&fakeCatalog{}, time.Minute).Shared() {
			t.Error("Shared() = true for a memory store")
		}
	})

	t.Run("Serves Repeated Calls From Cache", func(t *testing.T) {
		upstream := &fakeCatalog{}
		rec := newCountingRecorder()
		c := newTestCachedCatalog(upstream, time.Minute, WithCacheRecorder(rec))

		for range 3 {
			page, err := c.GetTopAnime(ctx, TopAll, 1, 25)
			if err != nil {
				t.Fatalf("GetTopAnime() error = %v", err)
			}
			if len(page.Data) != 3 {
				t.Fatalf("len(Data) = %d, want 3", len(page.Data))
			}
		}
		if upstream.calls.Load() != 1 {
			t.Errorf("upstream calls = %d, want 1", upstream.calls.Load())
		}
		stats := c.Stats()
		if stats.Hits != 2 || stats.Misses != 1 {
			t.Errorf("Stats() = %+v, want 2 hits, 1 miss", stats)
		}
		if rec.results["hit"] != 2 || rec.results["miss"] != 1 {
			t.Errorf("recorder results = %v", rec.results)
		}
	})

	t.Run("Keys By Request Signature", func(t *testing.T) {
		upstream := &fakeCatalog{}
		c := newTestCachedCatalog(upstream, time.Minute)

		calls := []func() error{
			func() error { _, err := c.SearchAnime(ctx, SearchParams{Query: "a"}); return err },
			func() error { _, err := c.SearchAnime(ctx, SearchParams{Query: "b"}); return err },
			func() error { _, err := c.SearchAnime(ctx, SearchParams{Query: "a", Page: 1}); return err },
			func() error { _, err := c.GetAnimeByID(ctx, 1); return err },
			func() error { _, err := c.GetAnimeByID(ctx, 2); return err },
			func() error { _, err := c.GetSeasonalAnime(ctx, 0, "", 1, 25); return err },
			func() error { _, err := c.GetAnimeRecommendations(ctx, 1); return err },
			func() error { _, err := c.GetGenres(ctx); return err },
			func() error { _, err := c.GetGenres(ctx); return err },
		}
		for i, call := range calls {
			if err := call(); err != nil {
				t.Fatalf("call %d error = %v", i, err)
			}
		}
		if upstream.calls.Load() != 7 {
			t.Errorf("upstream calls = %d, want 7", upstream.calls.Load())
		}
	})

	t.Run("Expires After TTL", func(t *testing.T) {
		upstream := &fakeCatalog{}
		c := newTestCachedCatalog(upstream, 20*time.Millisecond)

		if _, err := c.GetAnimeByID(ctx, 1); err != nil {
			t.Fatalf("GetAnimeByID() error = %v", err)
		}
		time.Sleep(40 * time.Millisecond)
		if _, err := c.GetAnimeByID(ctx, 1); err != nil {
			t.Fatalf("GetAnimeByID() error = %v", err)
		}
		if upstream.calls.Load() != 2 {
			t.Errorf("upstream calls = %d, want 2", upstream.calls.Load())
		}
	})

	t.Run("Does Not Cache Errors", func(t *testing.T) {
		upstream := &fakeCatalog{err: shared.ErrServiceUnavailable}
		c := newTestCachedCatalog(upstream, time.Minute)

		for range 2 {
			if _, err := c.GetGenres(ctx); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Fatalf("error = %v, want ErrServiceUnavailable", err)
			}
		}
		if upstream.calls.Load() != 2 {
			t.Errorf("upstream calls = %d, want 2", upstream.calls.Load())
		}

		upstream.err = nil
		if _, err := c.GetGenres(ctx); err != nil {
			t.Errorf("GetGenres() after recovery error = %v", err)
		}
	})

	t.Run("Never Caches Random", func(t *testing.T) {
		upstream := &fakeCatalog{}
		c := newTestCachedCatalog(upstream, time.Minute)

		for range 2 {
			if _, err := c.GetRandomAnime(ctx); err != nil {
				t.Fatalf("GetRandomAnime() error = %v", err)
			}
		}
		if upstream.calls.Load() != 2 {
			t.Errorf("upstream calls = %d, want 2", upstream.calls.Load())
		}
	})

	t.Run("Rejects Invalid Arguments Without Upstream Call", func(t *testing.T) {
		upstream := &fakeCatalog{}
		c := newTestCachedCatalog(upstream, time.Minute)

		if _, err := c.GetAnimeByID(ctx, -1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
		if _, err := c.GetTopAnime(ctx, "nope", 1, 1); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
		if upstream.calls.Load() != 0 {
			t.Errorf("upstream calls = %d, want 0", upstream.calls.Load())
		}
	})

	t.Run("Collapses Concurrent Misses", func(t *testing.T) {
		upstream := &fakeCatalog{block: make(chan struct{})}
		c := newTestCachedCatalog(upstream, time.Minute)

		const callers = 8
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.GetAnimeByID(ctx, 1)
				errs <- err
			}()
		}

		deadline := time.Now().Add(time.Second)
		for c.Stats().Misses < callers && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		// Misses are counted just before joining the flight.
		time.Sleep(20 * time.Millisecond)
		close(upstream.block)
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("caller error = %v", err)
			}
		}
		if upstream.calls.Load() != 1 {
			t.Errorf("upstream calls = %d, want 1", upstream.calls.Load())
		}
		if c.Stats().Shared != callers {
			t.Errorf("Shared = %d, want %d", c.Stats().Shared, callers)
		}
	})

	t.Run("Caller Cancellation Does Not Fail Others", func(t *testing.T) {
		upstream := &fakeCatalog{block: make(chan struct{})}
		c := newTestCachedCatalog(upstream, time.Minute)

		cctx, cancel := context.WithCancel(ctx)
		cancelled := make(chan error, 1)
		go func() {
			_, err := c.GetAnimeByID(cctx, 1)
			cancelled <- err
		}()

		patient := make(chan error, 1)
		go func() {
			for c.Stats().Misses < 1 {
				time.Sleep(time.Millisecond)
			}
			_, err := c.GetAnimeByID(ctx, 1)
			patient <- err
		}()

		for c.Stats().Misses < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
		if err := <-cancelled; !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller error = %v, want context.Canceled", err)
		}

		close(upstream.block)
		if err := <-patient; err != nil {
			t.Errorf("patient caller error = %v", err)
		}
		if upstream.calls.Load() != 1 {
			t.Errorf("upstream calls = %d, want 1", upstream.calls.Load())
		}
	})

	t.Run("Invalidate And Purge", func(t *testing.T) {
		upstream := &fakeCatalog{}
		c := newTestCachedCatalog(upstream, time.Minute)

		c.GetAnimeByID(ctx, 1)
		c.GetAnimeByID(ctx, 2)
		if err := c.Invalidate(ctx, "/anime/1"); err != nil {
			t.Fatalf("Invalidate() error = %v", err)
		}
		c.GetAnimeByID(ctx, 1)
		c.GetAnimeByID(ctx, 2)
		if upstream.calls.Load() != 3 {
			t.Errorf("upstream calls after invalidate = %d, want 3", upstream.calls.Load())
		}

		if err := c.Purge(ctx); err != nil {
			t.Fatalf("Purge() error = %v", err)
		}
		c.GetAnimeByID(ctx, 2)
		if upstream.calls.Load() != 4 {
			t.Errorf("upstream calls after purge = %d, want 4", upstream.calls.Load())
		}
	})

	t.Run("Default TTL", func(t *testing.T) {
		c := newTestCachedCatalog(&fakeCatalog{}, 0)
		if c.ttl != DefaultCacheTTL {
			t.Errorf("ttl = %v, want %v", c.ttl, DefaultCacheTTL)
		}
	})
}
