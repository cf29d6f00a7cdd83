package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/anilistx/internal/cache"
	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	openDB     func(shared.DatabaseConfig) (*sqlx.DB, error)
	browse     func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog // Built from Config on first use when nil
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		openDB:     shared.OpenDatabase,
		browse:     shared.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, animeCommand, cacheCommand, reviewsCommand, listCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the config at the --config path when that file exists, else the runner's config.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	path := cmd.String("config")
	if path == "" || path == r.configPath {
		return r.config, nil
	}
	if _, err := os.Stat(path); err != nil {
		return r.config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	config.ApplyEnv()
	return config, nil
}

// buildCatalog wraps the Jikan client in the response cache described by cfg.
func buildCatalog(cfg *shared.Config, httpClient *http.Client, logger *log.Logger, recorder services.Recorder) (*services.CachedCatalog, error) {
	store, err := cache.FromConfig(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	opts := services.JikanOptionsFromConfig(cfg.Catalog)
	opts.HTTPClient = httpClient
	opts.Logger = shared.WithLogger(logger, "component", "catalog")
	opts.Recorder = recorder

	cacheOpts := []services.CachedCatalogOption{services.WithCacheLogger(opts.Logger)}
	if recorder != nil {
		cacheOpts = append(cacheOpts, services.WithCacheRecorder(recorder))
	}
	return services.NewCachedCatalog(services.NewJikanService(opts), store, cfg.Cache.TTL.Duration, cacheOpts...), nil
}

// getCatalog returns the injected catalog or builds one from the runner's config.
func (r *Runner) getCatalog() (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}
	catalog, err := buildCatalog(r.config, r.httpClient, r.logger, nil)
	if err != nil {
		return nil, err
	}
	r.catalog = catalog
	return catalog, nil
}

// withDatabase opens the configured database, applies pending migrations and runs fn.
func (r *Runner) withDatabase(ctx context.Context, cfg *shared.Config, fn func(db *sqlx.DB) error) error {
	db, err := r.openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return fn(db)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
