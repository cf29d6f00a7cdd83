package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
	"github.com/desertthunder/anilistx/internal/tasks"
)

// sharedCache is a catalog cache visible to other processes.
type sharedCache interface {
	Purge(ctx context.Context) error
	Shared() bool
}

// catalogFor returns the catalog for the --config in effect.
func (r *Runner) catalogFor(cmd *cli.Command) (services.Catalog, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if config == r.config {
		return r.getCatalog()
	}
	return buildCatalog(config, r.httpClient, r.logger, nil)
}

// sharedCatalogFor returns the catalog when its cache outlives this command.
//
// A process-local cache would be filled or cleared and then discarded on exit.
func (r *Runner) sharedCatalogFor(cmd *cli.Command) (services.Catalog, sharedCache, error) {
	catalog, err := r.catalogFor(cmd)
	if err != nil {
		return nil, nil, err
	}
	c, ok := catalog.(sharedCache)
	if !ok {
		return nil, nil, fmt.Errorf("%w: catalog is not cached", shared.ErrInvalidConfig)
	}
	if !c.Shared() {
		return nil, nil, fmt.Errorf("%w: the in-memory cache only lives inside a running server; set [cache] redis_url or use serve --warm", shared.ErrInvalidConfig)
	}
	return catalog, c, nil
}

// logProgress drains progress updates into the logger until the channel is closed.
func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate, wg *sync.WaitGroup) {
	defer wg.Done()
	for update := range progress {
		r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
	}
}

// warm runs a warm-up through catalog, logging progress and failed requests.
func (r *Runner) warm(ctx context.Context, catalog services.Catalog, opts tasks.WarmOpts) (*tasks.WarmResult, error) {
	engine := tasks.NewCatalogEngine(catalog, nil)
	engine.SetLogger(shared.WithLogger(r.logger, "component", "warm"))

	progress := make(chan tasks.ProgressUpdate, 8)
	var wg sync.WaitGroup
	wg.Add(1)
	go r.logProgress(progress, &wg)

	result, err := engine.Warm(ctx, progress, opts)
	close(progress)
	wg.Wait()
	if result != nil {
		for _, e := range result.Errors {
			r.logger.Warn("warm-up request failed", "error", e)
		}
	}
	return result, err
}

// CacheWarm pre-fetches popular catalog pages into the shared cache used by running servers.
func (r *Runner) CacheWarm(ctx context.Context, cmd *cli.Command) error {
	catalog, _, err := r.sharedCatalogFor(cmd)
	if err != nil {
		return err
	}

	var filters []services.TopFilter
	for _, f := range cmd.StringSlice("filters") {
		filters = append(filters, services.TopFilter(strings.ToLower(strings.TrimSpace(f))))
	}

	result, err := r.warm(ctx, catalog, tasks.WarmOpts{
		TopPages:   int(cmd.Int("pages")),
		TopFilters: filters,
		Limit:      int(cmd.Int("limit")),
		SkipSeason: cmd.Bool("skip-season"),
		SkipGenres: cmd.Bool("skip-genres"),
	})
	if err != nil {
		return fmt.Errorf("cache warm-up interrupted: %w", err)
	}
	r.writePlain("✓ Warmed %d requests (%d anime)\n", result.Requests, result.Items)
	if n := len(result.Errors); n > 0 {
		r.writePlain("  %d requests failed\n", n)
	}
	return nil
}

// CachePurge drops every response from the shared catalog cache.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	_, c, err := r.sharedCatalogFor(cmd)
	if err != nil {
		return err
	}
	if err := c.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	r.writePlain("✓ Catalog cache purged\n")
	return nil
}
