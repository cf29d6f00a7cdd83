package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/anilistx/internal/formatter"
	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/repositories"
	"github.com/desertthunder/anilistx/internal/shared"
	"github.com/desertthunder/anilistx/internal/tasks"
)

// enrichEntries attaches catalog metadata through the snapshot store, logging progress.
//
// Enrichment failures are logged and leave the entries untitled; only cancellation is returned.
func (r *Runner) enrichEntries(ctx context.Context, db *sqlx.DB, entries []*models.ListEntry) error {
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	engine := tasks.NewCatalogEngine(catalog, repositories.NewSnapshotCacheAdapter(repositories.NewSnapshotRepository(db)))
	engine.SetLogger(shared.WithLogger(r.logger, "component", "enrich"))

	progress := make(chan tasks.ProgressUpdate, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go r.logProgress(progress, &wg)

	result, err := engine.Enrich(ctx, progress, entries, tasks.EnrichOpts{})
	close(progress)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("enrichment interrupted: %w", err)
	}

	for _, f := range result.Failed {
		r.logger.Warn("no metadata for anime", "anime_id", f.AnimeID, "error", f.Err)
	}
	r.logger.Debug("enriched list",
		"anime", result.TotalAnime, "snapshots", result.FromSnapshot, "fetched", result.Fetched, "stale", result.Stale)
	return nil
}

func listStatusFlag(cmd *cli.Command) (models.ListStatus, error) {
	raw := strings.ToLower(cmd.String("status"))
	if raw == "" {
		return "", nil
	}
	status := models.ListStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("%w: status %q", shared.ErrInvalidArgument, raw)
	}
	return status, nil
}

// ListShow prints a user's watch-list.
func (r *Runner) ListShow(ctx context.Context, cmd *cli.Command) error {
	status, err := listStatusFlag(cmd)
	if err != nil {
		return err
	}
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	return r.withDatabase(ctx, config, func(db *sqlx.DB) error {
		entries, err := repositories.NewListEntryRepository(db).List(ctx, cmd.String("user"), status)
		if err != nil {
			return fmt.Errorf("failed to load list: %w", err)
		}
		if cmd.Bool("enrich") {
			if err := r.enrichEntries(ctx, db, entries); err != nil {
				return err
			}
		}

		if cmd.Bool("json") {
			return r.writeJSON(entries, cmd.Bool("pretty"))
		}
		return formatter.RenderListTable(r.output, entries)
	})
}

// ListStats prints watch-list statistics.
func (r *Runner) ListStats(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	return r.withDatabase(ctx, config, func(db *sqlx.DB) error {
		stats, err := repositories.NewListEntryRepository(db).Stats(ctx, cmd.String("user"))
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}
		if cmd.Bool("json") {
			return r.writeJSON(stats, cmd.Bool("pretty"))
		}

		r.writePlainHeader("Watch-list statistics")
		r.writePlain("Total:          %d\n", stats.TotalAnime)
		r.writePlain("Watching:       %d\n", stats.Watching)
		r.writePlain("Completed:      %d\n", stats.Completed)
		r.writePlain("On Hold:        %d\n", stats.OnHold)
		r.writePlain("Dropped:        %d\n", stats.Dropped)
		r.writePlain("Plan to Watch:  %d\n", stats.PlanToWatch)
		r.writePlain("Episodes:       %d\n", stats.TotalEpisodes)
		r.writePlain("Average score:  %.2f\n", stats.AverageScore)
		r.writePlain("Highest score:  %d\n", stats.HighestScore)
		return nil
	})
}

// ListExport writes a user's watch-list to disk in the requested format.
//
// The owner's profile supplies the export name and avatar; a user without a profile is exported
// under their id.
func (r *Runner) ListExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(strings.ToLower(cmd.String("format")))
	if err != nil {
		return err
	}
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	userID := cmd.String("user")

	return r.withDatabase(ctx, config, func(db *sqlx.DB) error {
		lists := repositories.NewListEntryRepository(db)
		entries, err := lists.List(ctx, userID, "")
		if err != nil {
			return fmt.Errorf("failed to load list: %w", err)
		}
		stats, err := lists.Stats(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		export := &models.ListExport{
			Owner:      userID,
			Stats:      stats,
			Entries:    entries,
			ExportedAt: time.Now().UTC(),
		}
		profile, err := repositories.NewProfileRepository(db).Get(ctx, userID)
		switch {
		case err == nil:
			export.Owner = profile.Username
			export.AvatarURL = profile.AvatarURL
		case errors.Is(err, shared.ErrNotFound):
			r.logger.Debug("exporting list without profile", "user", userID)
		default:
			return fmt.Errorf("failed to load profile: %w", err)
		}

		if cmd.Bool("enrich") {
			if err := r.enrichEntries(ctx, db, entries); err != nil {
				return err
			}
		}

		files, err := formatter.WriteListExport(ctx, export, format, cmd.String("output"))
		if err != nil {
			return fmt.Errorf("failed to export list: %w", err)
		}

		r.logger.Info("list exported", "owner", export.Owner, "entries", len(entries), "format", format)
		r.writePlain("✓ Exported %d entries\n", len(entries))
		for _, f := range files {
			r.writePlain("  %s\n", f)
		}
		return nil
	})
}
