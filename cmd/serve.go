package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/anilistx/internal/repositories"
	"github.com/desertthunder/anilistx/internal/server"
	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
	"github.com/desertthunder/anilistx/internal/tasks"
)

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		config.Server.Port = port
	}
	if err := config.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return r.withDatabase(ctx, config, func(db *sqlx.DB) error {
		metrics := server.NewMetrics()

		catalog := r.catalog
		if catalog == nil {
			cachedCatalog, err := buildCatalog(config, r.httpClient, r.logger, metrics)
			if err != nil {
				return err
			}
			catalog = cachedCatalog
		}

		if cmd.Bool("warm") {
			go r.warmOnStart(ctx, catalog)
		}

		snapshots := repositories.NewSnapshotRepository(db)
		engine := tasks.NewCatalogEngine(catalog, repositories.NewSnapshotCacheAdapter(snapshots))
		engine.SetLogger(shared.WithLogger(r.logger, "component", "enrich"))

		srv := server.New(config.Server, server.Deps{
			Catalog:       catalog,
			Reviews:       repositories.NewReviewRepository(db),
			Lists:         repositories.NewListEntryRepository(db),
			Profiles:      repositories.NewProfileRepository(db),
			Enricher:      engine,
			EnrichTimeout: config.Server.EnrichTimeout.Duration,
			Auth:          server.NewAuthenticator(config.Auth, r.httpClient, shared.WithLogger(r.logger, "component", "auth")),
			Metrics:       metrics,
			DB:            db,
			Logger:        shared.WithLogger(r.logger, "component", "server"),
		})

		r.logger.Info("serving anilistx API", "addr", config.Server.Addr(), "database", config.Database.Driver)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		r.logger.Info("server stopped")
		return nil
	})
}

var _ services.Recorder = (*server.Metrics)(nil)

// warmOnStart fills the server's catalog cache with the default warm-up set.
func (r *Runner) warmOnStart(ctx context.Context, catalog services.Catalog) {
	result, err := r.warm(ctx, catalog, tasks.WarmOpts{})
	if err != nil {
		r.logger.Warn("startup warm-up interrupted", "error", err)
		return
	}
	r.logger.Info("catalog cache warmed", "requests", result.Requests, "anime", result.Items, "failed", len(result.Errors))
}
