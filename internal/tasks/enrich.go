package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/shared"
)

const (
	defaultEnrichWorkers = 5
	maxEnrichWorkers     = 10
	defaultEnrichRate    = 3.0
	defaultSnapshotAge   = 24 * time.Hour
)

// EnrichOpts contains configuration for watch-list enrichment.
type EnrichOpts struct {
	NumWorkers int           // Concurrent workers (default: 5, max: 10)
	RateLimit  float64       // Catalog requests per second (default: 3)
	MaxAge     time.Duration // Snapshots older than this are refetched (default: 24h)
}

// EnrichFailure records an anime id whose metadata could not be resolved.
type EnrichFailure struct {
	AnimeID int
	Err     error
}

// EnrichResult summarizes an enrichment run.
type EnrichResult struct {
	Entries      []*models.ListEntry // Input entries with Anime attached where resolved
	TotalAnime   int                 // Distinct anime ids
	FromSnapshot int                 // Served from fresh snapshots
	Fetched      int                 // Fetched from the catalog
	Stale        int                 // Fetch failed, stale snapshot used instead
	Failed       []EnrichFailure     // No metadata available
}

type enrichJob struct {
	animeID int
}

type enrichOutcome struct {
	animeID  int
	snapshot *models.AnimeSnapshot
	err      error
}

// Enrich attaches an [models.AnimeSnapshot] to every entry.
//
// Fresh snapshots are used as-is; the rest are fetched through a bounded, rate-limited worker
// pool and written back to the snapshot store. A failed fetch falls back to a stale snapshot
// when one exists. Failures are collected in the result; only context cancellation is returned
// as an error, alongside the partial result.
func (e *CatalogEngine) Enrich(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	entries []*models.ListEntry,
	opts EnrichOpts,
) (*EnrichResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultEnrichWorkers
	}
	if opts.NumWorkers > maxEnrichWorkers {
		opts.NumWorkers = maxEnrichWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultEnrichRate
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultSnapshotAge
	}

	ids := distinctAnimeIDs(entries)
	result := &EnrichResult{Entries: entries, TotalAnime: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	e.sendProgress(prog, lookupSnapshotsUpdate(len(ids)))
	known := e.lookupSnapshots(ctx, ids)

	resolved := make(map[int]*models.AnimeSnapshot, len(ids))
	var pending []int
	now := time.Now()
	for _, id := range ids {
		if s, ok := known[id]; ok && s.Fresh(opts.MaxAge, now) {
			resolved[id] = s
			result.FromSnapshot++
			continue
		}
		pending = append(pending, id)
	}
	e.sendProgress(prog, snapshotsFoundUpdate(result.FromSnapshot, len(ids)))

	if len(pending) > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		jobs := make(chan enrichJob, len(pending))
		results := make(chan enrichOutcome, len(pending))

		var wg sync.WaitGroup
		for i := 0; i < opts.NumWorkers; i++ {
			wg.Add(1)
			go e.enrichWorker(ctx, &wg, limiter, jobs, results)
		}

		for _, id := range pending {
			jobs <- enrichJob{animeID: id}
		}
		close(jobs)

		go func() {
			wg.Wait()
			close(results)
		}()

		completed := 0
		for res := range results {
			completed++
			if res.err == nil {
				resolved[res.animeID] = res.snapshot
				result.Fetched++
				e.sendProgress(prog, fetchedAnimeUpdate(completed, len(pending), res.snapshot.Title))
				continue
			}

			if s, ok := known[res.animeID]; ok {
				e.logger.Warn("using stale snapshot", "anime_id", res.animeID, "error", res.err)
				resolved[res.animeID] = s
				result.Stale++
			} else {
				result.Failed = append(result.Failed, EnrichFailure{AnimeID: res.animeID, Err: res.err})
			}
			e.sendProgress(prog, fetchAnimeFailedUpdate(completed, len(pending), res.animeID, res.err))
		}

		// Workers skip remaining jobs once ctx ends.
		for _, id := range pending {
			if _, ok := resolved[id]; ok || failedContains(result.Failed, id) {
				continue
			}
			if s, ok := known[id]; ok {
				resolved[id] = s
				result.Stale++
				continue
			}
			result.Failed = append(result.Failed, EnrichFailure{AnimeID: id, Err: ctx.Err()})
		}
	}

	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if s, ok := resolved[entry.AnimeID]; ok {
			entry.Anime = s
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// enrichWorker resolves anime ids from the jobs channel.
func (e *CatalogEngine) enrichWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan enrichJob,
	results chan<- enrichOutcome,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := limiter.Wait(ctx); err != nil {
			results <- enrichOutcome{animeID: job.animeID, err: err}
			continue
		}
		s, err := e.resolveAnime(ctx, job.animeID)
		results <- enrichOutcome{animeID: job.animeID, snapshot: s, err: err}
	}
}

// resolveAnime fetches one anime and stores its snapshot. A failed write is logged, not returned.
func (e *CatalogEngine) resolveAnime(ctx context.Context, animeID int) (*models.AnimeSnapshot, error) {
	anime, err := e.catalog.GetAnimeByID(ctx, animeID)
	if err != nil {
		return nil, err
	}

	if e.snapshots != nil {
		s, err := e.snapshots.CacheAnime(ctx, *anime)
		if err == nil {
			return s, nil
		}
		e.logger.Warn("failed to cache snapshot", "anime_id", animeID, "error", err)
	}
	return anime.Snapshot(time.Now()), nil
}

// lookupSnapshots returns stored snapshots, treating a lookup failure as an empty store.
func (e *CatalogEngine) lookupSnapshots(ctx context.Context, ids []int) map[int]*models.AnimeSnapshot {
	if e.snapshots == nil {
		return map[int]*models.AnimeSnapshot{}
	}
	found, err := e.snapshots.Lookup(ctx, ids)
	if err != nil {
		e.logger.Warn("snapshot lookup failed", "error", err)
		return map[int]*models.AnimeSnapshot{}
	}
	if found == nil {
		found = map[int]*models.AnimeSnapshot{}
	}
	return found
}

func distinctAnimeIDs(entries []*models.ListEntry) []int {
	seen := make(map[int]bool, len(entries))
	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.AnimeID <= 0 || seen[entry.AnimeID] {
			continue
		}
		seen[entry.AnimeID] = true
		ids = append(ids, entry.AnimeID)
	}
	return ids
}

func failedContains(failed []EnrichFailure, animeID int) bool {
	for _, f := range failed {
		if f.AnimeID == animeID {
			return true
		}
	}
	return false
}
