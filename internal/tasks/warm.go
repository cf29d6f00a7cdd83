package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

// WarmOpts selects which catalog pages to pre-fetch.
type WarmOpts struct {
	TopPages   int                  // Pages of each top list (default: 1)
	TopFilters []services.TopFilter // Top lists to warm (default: the unfiltered list)
	Limit      int                  // Page size (default: 25)
	SkipSeason bool                 // Skip the current season
	SkipGenres bool                 // Skip the genre list
}

// WarmResult summarizes a warm-up run.
type WarmResult struct {
	Requests int     // Catalog calls made
	Items    int     // Anime received across all pages
	Errors   []error // Calls that failed
}

// Warm pre-fetches top lists, the current season and the genre list through the catalog.
//
// Run against a [services.CachedCatalog] so the responses land in its cache. Individual
// failures are collected; only context cancellation stops the run.
func (e *CatalogEngine) Warm(ctx context.Context, prog chan<- ProgressUpdate, opts WarmOpts) (*WarmResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	if opts.TopPages <= 0 {
		opts.TopPages = 1
	}
	if len(opts.TopFilters) == 0 {
		opts.TopFilters = []services.TopFilter{services.TopAll}
	}
	opts.Limit = services.NormalizeLimit(opts.Limit)

	result := &WarmResult{}
	for i, filter := range opts.TopFilters {
		if !filter.Valid() {
			result.Errors = append(result.Errors, fmt.Errorf("%w: top filter %q", shared.ErrInvalidArgument, filter))
			continue
		}
		e.sendProgress(prog, warmTopUpdate(i+1, len(opts.TopFilters), string(filter)))

		items, err := CollectPages(ctx, func(ctx context.Context, page int) (*services.Page[services.Anime], error) {
			result.Requests++
			return e.catalog.GetTopAnime(ctx, filter, page, opts.Limit)
		}, opts.TopPages)
		result.Items += len(items)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.logger.Warn("failed to warm top anime", "filter", filter, "error", err)
			result.Errors = append(result.Errors, err)
		}
	}

	if !opts.SkipSeason {
		e.sendProgress(prog, warmSeasonalUpdate(1, 1))
		result.Requests++
		page, err := e.catalog.GetSeasonalAnime(ctx, 0, "", services.DefaultPage, opts.Limit)
		switch {
		case err != nil && ctx.Err() != nil:
			return result, ctx.Err()
		case err != nil:
			e.logger.Warn("failed to warm current season", "error", err)
			result.Errors = append(result.Errors, err)
		case page != nil:
			result.Items += len(page.Data)
		}
	}

	if !opts.SkipGenres {
		e.sendProgress(prog, warmGenresUpdate(1, 1))
		result.Requests++
		if _, err := e.catalog.GetGenres(ctx); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			e.logger.Warn("failed to warm genres", "error", err)
			result.Errors = append(result.Errors, err)
		}
	}

	return result, nil
}
