package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/anilistx/internal/formatter"
	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
	"github.com/desertthunder/anilistx/internal/tasks"
)

// pageRequest is the page window of a listing command.
type pageRequest struct {
	Page  int
	Limit int
}

// unavailable reports upstream failures worth retrying later.
func unavailable(err error) bool {
	return errors.Is(err, shared.ErrServiceUnavailable) ||
		errors.Is(err, shared.ErrTimeout) ||
		errors.Is(err, shared.ErrRateLimited)
}

// queryPage loads one page through a page query and prints it.
//
// When the catalog is unavailable the query's empty page is printed with a retry hint
// and the command succeeds. Other failures are returned.
func (r *Runner) queryPage(
	ctx context.Context,
	cmd *cli.Command,
	what string,
	fetch func(ctx context.Context, req pageRequest) (*services.Page[services.Anime], error),
) error {
	q := tasks.NewPageQuery(fetch, func(req pageRequest) (int, int) { return req.Page, req.Limit },
		tasks.WithQueryLogger[pageRequest, *services.Page[services.Anime]](shared.WithLogger(r.logger, "query", what)))

	state, err := q.Fetch(ctx, pageRequest{Page: int(cmd.Int("page")), Limit: int(cmd.Int("limit"))})
	if err != nil {
		if ctx.Err() != nil || !unavailable(err) {
			return fmt.Errorf("failed to fetch %s: %w", what, err)
		}
		if !cmd.Bool("json") {
			r.writePlain("The catalog is unavailable right now, try again shortly.\n")
		}
	}
	return r.writePage(cmd, state.Data)
}

// animeIDArg parses the positional id argument.
func animeIDArg(cmd *cli.Command) (int, error) {
	raw := cmd.StringArg("id")
	if raw == "" {
		return 0, fmt.Errorf("%w: anime id", shared.ErrMissingArgument)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: anime id %q", shared.ErrInvalidArgument, raw)
	}
	return id, nil
}

// writePage prints a page of anime as JSON or as a table with a pagination footer.
func (r *Runner) writePage(cmd *cli.Command, page *services.Page[services.Anime]) error {
	if cmd.Bool("json") {
		return r.writeJSON(page, cmd.Bool("pretty"))
	}
	if len(page.Data) == 0 {
		return r.writePlain("No anime found.\n")
	}
	if err := formatter.RenderAnimeTable(r.output, page.Data); err != nil {
		return err
	}
	p := page.Pagination
	if p == nil {
		return nil
	}
	more := ""
	if p.HasNextPage {
		more = fmt.Sprintf(" (next: --page %d)", p.CurrentPage+1)
	}
	return r.writePlain("Page %d of %d, %d results%s\n", p.CurrentPage, max(p.LastVisiblePage, 1), p.Items.Total, more)
}

func (r *Runner) writeAnime(cmd *cli.Command, anime *services.Anime) error {
	if cmd.Bool("json") {
		return r.writeJSON(anime, cmd.Bool("pretty"))
	}

	r.writePlainHeader(anime.DisplayTitle())
	r.writePlain("ID:        %d\n", anime.MalID)
	if anime.TitleJapanese != "" {
		r.writePlain("Japanese:  %s\n", anime.TitleJapanese)
	}
	r.writePlain("Type:      %s\n", anime.Type)
	if anime.Episodes != nil {
		r.writePlain("Episodes:  %d\n", *anime.Episodes)
	}
	if anime.Score != nil {
		r.writePlain("Score:     %.2f\n", *anime.Score)
	}
	if anime.Status != "" {
		r.writePlain("Status:    %s\n", anime.Status)
	}
	if anime.Year != nil {
		r.writePlain("Year:      %d\n", *anime.Year)
	}
	if len(anime.Genres) > 0 {
		names := make([]string, 0, len(anime.Genres))
		for _, g := range anime.Genres {
			names = append(names, g.Name)
		}
		r.writePlain("Genres:    %s\n", strings.Join(names, ", "))
	}
	r.writePlain("URL:       %s\n", anime.URL)
	if anime.Synopsis != "" {
		r.writePlainln("%s", anime.Synopsis)
	}
	return nil
}

// AnimeSearch searches the catalog by title and filters.
func (r *Runner) AnimeSearch(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	params := services.SearchParams{
		Query:    query,
		Type:     cmd.String("type"),
		Status:   cmd.String("status"),
		Rating:   cmd.String("rating"),
		Genres:   cmd.String("genres"),
		MinScore: float64(cmd.Float("min-score")),
		OrderBy:  cmd.String("order-by"),
		Sort:     cmd.String("sort"),
	}
	if cmd.IsSet("sfw") {
		sfw := cmd.Bool("sfw")
		params.SFW = &sfw
	}

	return r.queryPage(ctx, cmd, "search results", func(ctx context.Context, req pageRequest) (*services.Page[services.Anime], error) {
		params.Page, params.Limit = req.Page, req.Limit
		r.logger.Debug("searching catalog", "query", query, "page", params.Page)
		return catalog.SearchAnime(ctx, params)
	})
}

// AnimeGet shows one anime.
func (r *Runner) AnimeGet(ctx context.Context, cmd *cli.Command) error {
	id, err := animeIDArg(cmd)
	if err != nil {
		return err
	}
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	anime, err := catalog.GetAnimeByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch anime %d: %w", id, err)
	}
	return r.writeAnime(cmd, anime)
}

// AnimeTop lists top-ranked anime, optionally narrowed by --filter.
func (r *Runner) AnimeTop(ctx context.Context, cmd *cli.Command) error {
	filter := services.TopFilter(strings.ToLower(cmd.String("filter")))
	if !filter.Valid() {
		return fmt.Errorf("%w: top filter %q", shared.ErrInvalidArgument, filter)
	}
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	return r.queryPage(ctx, cmd, "top anime", func(ctx context.Context, req pageRequest) (*services.Page[services.Anime], error) {
		return catalog.GetTopAnime(ctx, filter, req.Page, req.Limit)
	})
}

// AnimeSeasonal lists a season's anime. Both --year and --season are needed to leave the current season.
func (r *Runner) AnimeSeasonal(ctx context.Context, cmd *cli.Command) error {
	season, err := services.ParseSeason(cmd.String("season"))
	if err != nil {
		return err
	}
	year := int(cmd.Int("year"))
	if (year > 0) != (season != "") {
		return fmt.Errorf("%w: --year and --season must be given together", shared.ErrMissingArgument)
	}
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	return r.queryPage(ctx, cmd, "seasonal anime", func(ctx context.Context, req pageRequest) (*services.Page[services.Anime], error) {
		return catalog.GetSeasonalAnime(ctx, year, season, req.Page, req.Limit)
	})
}

// AnimeGenres lists the catalog's genres.
func (r *Runner) AnimeGenres(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}
	genres, err := catalog.GetGenres(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch genres: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(genres, cmd.Bool("pretty"))
	}
	return formatter.RenderGenreTable(r.output, genres)
}

// AnimeRecommendations lists what viewers of an anime also recommend.
func (r *Runner) AnimeRecommendations(ctx context.Context, cmd *cli.Command) error {
	id, err := animeIDArg(cmd)
	if err != nil {
		return err
	}
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	recs, err := catalog.GetAnimeRecommendations(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch recommendations for %d: %w", id, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(recs, cmd.Bool("pretty"))
	}
	if len(recs) == 0 {
		return r.writePlain("No recommendations for anime %d.\n", id)
	}
	return formatter.RenderRecommendationTable(r.output, recs)
}

// AnimeRandom shows a random anime.
func (r *Runner) AnimeRandom(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}
	anime, err := catalog.GetRandomAnime(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch random anime: %w", err)
	}
	return r.writeAnime(cmd, anime)
}

// AnimeOpen opens the anime's catalog page in the default browser.
func (r *Runner) AnimeOpen(ctx context.Context, cmd *cli.Command) error {
	id, err := animeIDArg(cmd)
	if err != nil {
		return err
	}
	catalog, err := r.getCatalog()
	if err != nil {
		return err
	}

	anime, err := catalog.GetAnimeByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch anime %d: %w", id, err)
	}
	r.logger.Info("opening browser", "url", anime.URL)
	return r.browse(anime.URL)
}
