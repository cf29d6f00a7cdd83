package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
	tu "github.com/desertthunder/anilistx/internal/testing"
)

type mockCacher struct {
	mu        sync.Mutex
	stored    map[int]*models.AnimeSnapshot
	lookupErr error
	cacheErr  error
	cached    []int
}

func newMockCacher(snapshots ...*models.AnimeSnapshot) *mockCacher {
	m := &mockCacher{stored: make(map[int]*models.AnimeSnapshot)}
	for _, s := range snapshots {
		m.stored[s.AnimeID] = s
	}
	return m
}

func (m *mockCacher) Lookup(ctx context.Context, ids []int) (map[int]*models.AnimeSnapshot, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	found := make(map[int]*models.AnimeSnapshot)
	for _, id := range ids {
		if s, ok := m.stored[id]; ok {
			found[id] = s
		}
	}
	return found, nil
}

func (m *mockCacher) CacheAnime(ctx context.Context, anime services.Anime) (*models.AnimeSnapshot, error) {
	if m.cacheErr != nil {
		return nil, m.cacheErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := anime.Snapshot(time.Now())
	m.stored[anime.MalID] = s
	m.cached = append(m.cached, anime.MalID)
	return s, nil
}

func snapshot(id int, title string, age time.Duration) *models.AnimeSnapshot {
	return &models.AnimeSnapshot{AnimeID: id, Title: title, FetchedAt: time.Now().Add(-age)}
}

func entries(ids ...int) []*models.ListEntry {
	out := make([]*models.ListEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.ListEntry{ID: shared.GenerateID(), UserID: "user-1", AnimeID: id, Status: models.StatusWatching})
	}
	return out
}

var fastEnrich = EnrichOpts{RateLimit: 1000}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{FetchSnapshots, "fetch_snapshots"},
		{FetchAnime, "fetch_anime"},
		{WarmTop, "warm_top"},
		{WarmSeasonal, "warm_seasonal"},
		{WarmGenres, "warm_genres"},
		{Phase(99), ""},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestCatalogEngine_Enrich(t *testing.T) {
	ctx := context.Background()

	t.Run("Uses Fresh Snapshots Without Fetching", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		cacher := newMockCacher(snapshot(1, "Cowboy Bebop", time.Minute))
		engine := NewCatalogEngine(catalog, cacher)

		list := entries(1)
		result, err := engine.Enrich(ctx, nil, list, fastEnrich)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.FromSnapshot != 1 || result.Fetched != 0 {
			t.Errorf("FromSnapshot = %d, Fetched = %d, want 1, 0", result.FromSnapshot, result.Fetched)
		}
		if catalog.Calls("GetAnimeByID") != 0 {
			t.Errorf("catalog called %d times, want 0", catalog.Calls("GetAnimeByID"))
		}
		if list[0].Anime == nil || list[0].Anime.Title != "Cowboy Bebop" {
			t.Errorf("entry not enriched: %+v", list[0].Anime)
		}
	})

	t.Run("Fetches Missing And Outdated Anime", func(t *testing.T) {
		catalog := tu.NewMockCatalog(
			tu.NewAnime(1, "Cowboy Bebop", 26),
			tu.NewAnime(2, "Trigun", 26),
		)
		cacher := newMockCacher(snapshot(2, "Old Title", 48*time.Hour))
		engine := NewCatalogEngine(catalog, cacher)

		list := entries(1, 2)
		result, err := engine.Enrich(ctx, nil, list, fastEnrich)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.Fetched != 2 {
			t.Errorf("Fetched = %d, want 2", result.Fetched)
		}
		if len(cacher.cached) != 2 {
			t.Errorf("cached %d snapshots, want 2", len(cacher.cached))
		}
		if list[1].Anime.Title != "Trigun" {
			t.Errorf("Title = %q, want refreshed title", list[1].Anime.Title)
		}
	})

	t.Run("Deduplicates Anime IDs", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		engine := NewCatalogEngine(catalog, nil)

		list := append(entries(1), entries(1)...)
		result, err := engine.Enrich(ctx, nil, list, fastEnrich)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.TotalAnime != 1 {
			t.Errorf("TotalAnime = %d, want 1", result.TotalAnime)
		}
		if catalog.Calls("GetAnimeByID") != 1 {
			t.Errorf("catalog called %d times, want 1", catalog.Calls("GetAnimeByID"))
		}
		for i, e := range list {
			if e.Anime == nil {
				t.Errorf("entry %d not enriched", i)
			}
		}
	})

	t.Run("Collects Partial Failures", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		engine := NewCatalogEngine(catalog, newMockCacher())

		list := entries(1, 404)
		result, err := engine.Enrich(ctx, nil, list, fastEnrich)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.Fetched != 1 || len(result.Failed) != 1 {
			t.Fatalf("Fetched = %d, Failed = %d, want 1, 1", result.Fetched, len(result.Failed))
		}
		if result.Failed[0].AnimeID != 404 || !errors.Is(result.Failed[0].Err, shared.ErrNotFound) {
			t.Errorf("unexpected failure: %+v", result.Failed[0])
		}
		if list[1].Anime != nil {
			t.Error("failed entry should not be enriched")
		}
	})

	t.Run("Falls Back To Stale Snapshot", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		catalog.Err = shared.ErrServiceUnavailable
		cacher := newMockCacher(snapshot(7, "Stale", 72*time.Hour))
		engine := NewCatalogEngine(catalog, cacher)

		list := entries(7)
		result, err := engine.Enrich(ctx, nil, list, fastEnrich)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.Stale != 1 || len(result.Failed) != 0 {
			t.Errorf("Stale = %d, Failed = %d, want 1, 0", result.Stale, len(result.Failed))
		}
		if list[0].Anime == nil || list[0].Anime.Title != "Stale" {
			t.Errorf("expected stale snapshot, got %+v", list[0].Anime)
		}
	})

	t.Run("Ignores Snapshot Store Failures", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		cacher := newMockCacher()
		cacher.lookupErr = errors.New("db down")
		cacher.cacheErr = errors.New("db down")
		engine := NewCatalogEngine(catalog, cacher)

		list := entries(1)
		result, err := engine.Enrich(ctx, nil, list, fastEnrich)
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.Fetched != 1 || list[0].Anime == nil {
			t.Errorf("expected fetched anime despite store failure, got %+v", result)
		}
	})

	t.Run("Sends Progress Updates", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26), tu.NewAnime(2, "Trigun", 26))
		engine := NewCatalogEngine(catalog, nil)

		progress := make(chan ProgressUpdate, 10)
		if _, err := engine.Enrich(ctx, progress, entries(1, 2), fastEnrich); err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		close(progress)

		phases := map[Phase]int{}
		for u := range progress {
			phases[u.Phase]++
		}
		if phases[FetchSnapshots] != 2 || phases[FetchAnime] != 2 {
			t.Errorf("unexpected progress phases: %v", phases)
		}
	})

	t.Run("Does Not Block On Full Progress Channel", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		engine := NewCatalogEngine(catalog, nil)

		progress := make(chan ProgressUpdate)
		if _, err := engine.Enrich(ctx, progress, entries(1), fastEnrich); err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
	})

	t.Run("Empty Entries", func(t *testing.T) {
		engine := NewCatalogEngine(tu.NewMockCatalog(), nil)
		result, err := engine.Enrich(ctx, nil, nil, EnrichOpts{})
		if err != nil {
			t.Fatalf("Enrich() error = %v", err)
		}
		if result.TotalAnime != 0 {
			t.Errorf("TotalAnime = %d, want 0", result.TotalAnime)
		}
	})

	t.Run("Nil Catalog", func(t *testing.T) {
		engine := NewCatalogEngine(nil, nil)
		_, err := engine.Enrich(ctx, nil, entries(1), EnrichOpts{})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("error = %v, want ErrServiceUnavailable", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		engine := NewCatalogEngine(catalog, nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		result, err := engine.Enrich(cctx, nil, entries(1), fastEnrich)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if result == nil {
			t.Fatal("expected partial result")
		}
	})

	t.Run("Deadline Reports Unresolved Anime", func(t *testing.T) {
		catalog := &blockingCatalog{MockCatalog: tu.NewMockCatalog()}
		cacher := newMockCacher(snapshot(1, "Cowboy Bebop", 48*time.Hour))
		engine := NewCatalogEngine(catalog, cacher)

		dctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		result, err := engine.Enrich(dctx, nil, entries(1, 2, 3), fastEnrich)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("error = %v, want context.DeadlineExceeded", err)
		}
		if result.Stale != 1 {
			t.Errorf("Stale = %d, want 1", result.Stale)
		}
		if len(result.Failed) != 2 || !failedContains(result.Failed, 2) || !failedContains(result.Failed, 3) {
			t.Errorf("Failed = %+v, want anime 2 and 3", result.Failed)
		}
	})
}

// blockingCatalog holds every lookup until the caller's context ends.
type blockingCatalog struct {
	*tu.MockCatalog
}

func (b *blockingCatalog) GetAnimeByID(ctx context.Context, id int) (*services.Anime, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCatalogEngine_Warm(t *testing.T) {
	ctx := context.Background()

	t.Run("Defaults", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26), tu.NewAnime(2, "Trigun", 26))
		engine := NewCatalogEngine(catalog, nil)

		result, err := engine.Warm(ctx, nil, WarmOpts{})
		if err != nil {
			t.Fatalf("Warm() error = %v", err)
		}
		if result.Requests != 3 {
			t.Errorf("Requests = %d, want 3", result.Requests)
		}
		if result.Items != 4 {
			t.Errorf("Items = %d, want 4", result.Items)
		}
		for _, method := range []string{"GetTopAnime", "GetSeasonalAnime", "GetGenres"} {
			if catalog.Calls(method) != 1 {
				t.Errorf("%s called %d times, want 1", method, catalog.Calls(method))
			}
		}
	})

	t.Run("Multiple Filters And Skips", func(t *testing.T) {
		catalog := tu.NewMockCatalog(tu.NewAnime(1, "Cowboy Bebop", 26))
		engine := NewCatalogEngine(catalog, nil)

		result, err := engine.Warm(ctx, nil, WarmOpts{
			TopFilters: []services.TopFilter{services.TopAiring, services.TopFavorite, "bogus"},
			SkipSeason: true,
			SkipGenres: true,
		})
		if err != nil {
			t.Fatalf("Warm() error = %v", err)
		}
		if catalog.Calls("GetTopAnime") != 2 {
			t.Errorf("GetTopAnime called %d times, want 2", catalog.Calls("GetTopAnime"))
		}
		if catalog.Calls("GetSeasonalAnime") != 0 || catalog.Calls("GetGenres") != 0 {
			t.Error("skipped calls were made")
		}
		if len(result.Errors) != 1 || !errors.Is(result.Errors[0], shared.ErrInvalidArgument) {
			t.Errorf("Errors = %v, want one invalid filter", result.Errors)
		}
	})

	t.Run("Collects Catalog Errors", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		catalog.Err = shared.ErrServiceUnavailable
		engine := NewCatalogEngine(catalog, nil)

		result, err := engine.Warm(ctx, nil, WarmOpts{})
		if err != nil {
			t.Fatalf("Warm() error = %v", err)
		}
		if len(result.Errors) != 3 {
			t.Errorf("Errors = %d, want 3", len(result.Errors))
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		catalog.Err = context.Canceled
		engine := NewCatalogEngine(catalog, nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := engine.Warm(cctx, nil, WarmOpts{}); !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("Sends Progress Updates", func(t *testing.T) {
		engine := NewCatalogEngine(tu.NewMockCatalog(), nil)
		progress := make(chan ProgressUpdate, 10)
		if _, err := engine.Warm(ctx, progress, WarmOpts{}); err != nil {
			t.Fatalf("Warm() error = %v", err)
		}
		close(progress)

		var got []Phase
		for u := range progress {
			got = append(got, u.Phase)
		}
		want := []Phase{WarmTop, WarmSeasonal, WarmGenres}
		if len(got) != len(want) {
			t.Fatalf("phases = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("phase[%d] = %v, want %v", i, got[i], want[i])
			}
		}
	})
}
