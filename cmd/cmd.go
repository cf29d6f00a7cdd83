// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "page",
			Usage: "Page number",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Results per page (max 25)",
			Value: 25,
		},
	}
}

// serverFlags point a command at a running anilistx server.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "url",
			Usage: "Base URL of the anilistx server (default: the configured server address)",
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Access token sent as a bearer token",
			Sources: cli.EnvVars("ANILISTX_TOKEN"),
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// setupCommand handles database setup operations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
			{
				Name:   "status",
				Usage:  "List migrations and whether they are applied",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupStatus,
			},
		},
	}
}

// serveCommand starts the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the catalog, review and watch-list HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides config)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "warm",
				Usage: "Pre-fetch top, seasonal and genre listings into the catalog cache on startup",
			},
		},
		Action: r.Serve,
	}
}

// animeCommand handles catalog lookups.
func animeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "anime",
		Usage: "Browse the anime catalog",
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search anime by title",
				Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
				Flags: flags(pageFlags(), jsonFlags(), []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "tv, movie, ova, special, ona or music"},
					&cli.StringFlag{Name: "status", Usage: "airing, complete or upcoming"},
					&cli.StringFlag{Name: "rating", Usage: "g, pg, pg13, r17, r or rx"},
					&cli.StringFlag{Name: "genres", Usage: "Comma-separated genre ids"},
					&cli.FloatFlag{Name: "min-score", Usage: "Minimum score"},
					&cli.StringFlag{Name: "order-by", Usage: "Field to order by (e.g. score, popularity)"},
					&cli.StringFlag{Name: "sort", Usage: "asc or desc"},
					&cli.BoolFlag{Name: "sfw", Usage: "Exclude adult entries"},
				}),
				Action: r.AnimeSearch,
			},
			{
				Name:      "get",
				Usage:     "Show one anime",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.AnimeGet,
			},
			{
				Name:  "top",
				Usage: "List top-ranked anime",
				Flags: flags(pageFlags(), jsonFlags(), []cli.Flag{
					&cli.StringFlag{Name: "filter", Usage: "airing, upcoming, bypopularity or favorite"},
				}),
				Action: r.AnimeTop,
			},
			{
				Name:  "seasonal",
				Usage: "List anime of a season (default: the current one)",
				Flags: flags(pageFlags(), jsonFlags(), []cli.Flag{
					&cli.IntFlag{Name: "year", Usage: "Season year"},
					&cli.StringFlag{Name: "season", Usage: "winter, spring, summer or fall"},
				}),
				Action: r.AnimeSeasonal,
			},
			{
				Name:   "genres",
				Usage:  "List anime genres",
				Flags:  jsonFlags(),
				Action: r.AnimeGenres,
			},
			{
				Name:      "recommendations",
				Aliases:   []string{"recs"},
				Usage:     "List recommendations for an anime",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     jsonFlags(),
				Action:    r.AnimeRecommendations,
			},
			{
				Name:   "random",
				Usage:  "Show a random anime",
				Flags:  jsonFlags(),
				Action: r.AnimeRandom,
			},
			{
				Name:      "open",
				Usage:     "Open an anime's catalog page in the browser",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.AnimeOpen,
			},
		},
	}
}

// cacheCommand manages the catalog response cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the catalog response cache",
		Commands: []*cli.Command{
			{
				Name:  "warm",
				Usage: "Pre-fetch top lists, the current season and genres",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{Name: "pages", Usage: "Pages of each top list", Value: 1},
					&cli.StringSliceFlag{Name: "filters", Usage: "Top lists to warm (airing, upcoming, bypopularity, favorite)"},
					&cli.IntFlag{Name: "limit", Usage: "Page size", Value: 25},
					&cli.BoolFlag{Name: "skip-season", Usage: "Skip the current season"},
					&cli.BoolFlag{Name: "skip-genres", Usage: "Skip the genre list"},
				},
				Action: r.CacheWarm,
			},
			{
				Name:   "purge",
				Usage:  "Drop every cached catalog response",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CachePurge,
			},
		},
	}
}

// reviewsCommand manages reviews through a running server.
func reviewsCommand(r *Runner) *cli.Command {
	reviewFields := []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "Review title"},
		&cli.StringFlag{Name: "text", Usage: "Review text"},
		&cli.IntFlag{Name: "score", Usage: "Score from 1 to 10"},
		&cli.BoolFlag{Name: "spoilers", Usage: "Mark the review as containing spoilers"},
	}

	return &cli.Command{
		Name:  "reviews",
		Usage: "List and manage anime reviews",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List reviews for an anime, a user or a single review id",
				Flags: flags(serverFlags(), jsonFlags(), []cli.Flag{
					&cli.IntFlag{Name: "anime", Usage: "Anime id"},
					&cli.StringFlag{Name: "user", Usage: "User id"},
					&cli.StringFlag{Name: "id", Usage: "Review id"},
				}),
				Action: r.ReviewsList,
			},
			{
				Name:  "create",
				Usage: "Review an anime",
				Flags: flags(serverFlags(), jsonFlags(), reviewFields, []cli.Flag{
					&cli.IntFlag{Name: "anime", Usage: "Anime id", Required: true},
				}),
				Action: r.ReviewsCreate,
			},
			{
				Name:      "update",
				Usage:     "Change a review you wrote",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     flags(serverFlags(), jsonFlags(), reviewFields),
				Action:    r.ReviewsUpdate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a review you wrote",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     serverFlags(),
				Action:    r.ReviewsDelete,
			},
		},
	}
}

// listCommand reads and exports watch-lists from the database.
func listCommand(r *Runner) *cli.Command {
	userFlag := &cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "User id", Required: true}

	return &cli.Command{
		Name:  "list",
		Usage: "Show and export watch-lists",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show a user's watch-list",
				Flags: flags(jsonFlags(), []cli.Flag{
					configFlag(),
					userFlag,
					&cli.StringFlag{Name: "status", Usage: "Only entries with this status"},
					&cli.BoolFlag{Name: "enrich", Usage: "Attach anime titles from the catalog", Value: true},
				}),
				Action: r.ListShow,
			},
			{
				Name:  "stats",
				Usage: "Show watch-list statistics",
				Flags: flags(jsonFlags(), []cli.Flag{configFlag(), userFlag}),
				Action: r.ListStats,
			},
			{
				Name:  "export",
				Usage: "Export a user's watch-list to csv, md, txt or json",
				Flags: []cli.Flag{
					configFlag(),
					userFlag,
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, md, txt or json", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (base name for csv, directory for md)"},
					&cli.BoolFlag{Name: "enrich", Usage: "Attach anime metadata from the catalog", Value: true},
				},
				Action: r.ListExport,
			},
		},
	}
}

// apiCommand handles direct calls to a running server.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the anilistx HTTP API",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Direct GET, prints the JSON response",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags:     flags(serverFlags(), jsonFlags()),
				Action:    r.APIGet,
			},
			{
				Name:      "post",
				Usage:     "Direct POST with JSON body",
				Arguments: []cli.Argument{&cli.StringArg{Name: "path"}},
				Flags: flags(serverFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				}),
				Action: r.APIPost,
			},
		},
	}
}
