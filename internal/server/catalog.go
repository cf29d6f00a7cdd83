package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

// CatalogHandler proxies the anime catalog.
type CatalogHandler struct {
	catalog services.Catalog
	logger  *log.Logger
}

func NewCatalogHandler(catalog services.Catalog, logger *log.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Mount implements [Handler].
func (h *CatalogHandler) Mount(r chi.Router) {
	r.Get("/api/anime", h.search)
	r.Get("/api/anime/random", h.random)
	r.Get("/api/anime/{id}", h.get)
	r.Get("/api/anime/{id}/recommendations", h.recommendations)
	r.Get("/api/top", h.top)
	r.Get("/api/seasons/now", h.seasonal)
	r.Get("/api/seasons/{year}/{season}", h.seasonal)
	r.Get("/api/genres", h.genres)
}

func (h *CatalogHandler) search(w http.ResponseWriter, r *http.Request) {
	params, err := searchParams(r)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}

	page, err := h.catalog.SearchAnime(r.Context(), params)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	respond(w, http.StatusOK, page)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}

	anime, err := h.catalog.GetAnimeByID(r.Context(), id)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	respond(w, http.StatusOK, map[string]any{"data": anime})
}

func (h *CatalogHandler) random(w http.ResponseWriter, r *http.Request) {
	anime, err := h.catalog.GetRandomAnime(r.Context())
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	respond(w, http.StatusOK, map[string]any{"data": anime})
}

func (h *CatalogHandler) recommendations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}

	recs, err := h.catalog.GetAnimeRecommendations(r.Context(), id)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	if recs == nil {
		recs = []services.Recommendation{}
	}
	respond(w, http.StatusOK, map[string]any{"data": recs})
}

func (h *CatalogHandler) top(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}

	filter := services.TopFilter(r.URL.Query().Get("filter"))
	result, err := h.catalog.GetTopAnime(r.Context(), filter, page, limit)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	respond(w, http.StatusOK, result)
}

// seasonal serves both the current season and /{year}/{season}.
func (h *CatalogHandler) seasonal(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}

	var year int
	var season services.Season
	if y := chi.URLParam(r, "year"); y != "" {
		if year, err = strconv.Atoi(y); err != nil || year <= 0 {
			respondError(w, http.StatusBadRequest, "invalid year")
			return
		}
		if season, err = services.ParseSeason(chi.URLParam(r, "season")); err != nil || season == "" {
			respondError(w, http.StatusBadRequest, "invalid season")
			return
		}
	}

	result, err := h.catalog.GetSeasonalAnime(r.Context(), year, season, page, limit)
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	respond(w, http.StatusOK, result)
}

func (h *CatalogHandler) genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.GetGenres(r.Context())
	if err != nil {
		respondErr(w, r, h.logger, err, "")
		return
	}
	if genres == nil {
		genres = []services.Resource{}
	}
	respond(w, http.StatusOK, map[string]any{"data": genres})
}

func pathID(r *http.Request, key string) (int, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q", shared.ErrInvalidArgument, key, raw)
	}
	return id, nil
}

func pageParams(r *http.Request) (page, limit int, err error) {
	if page, err = queryInt(r, "page", services.DefaultPage); err != nil {
		return 0, 0, err
	}
	if limit, err = queryInt(r, "limit", services.DefaultLimit); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

// searchParams reads the search query string. Unparseable or non-finite numbers are rejected.
func searchParams(r *http.Request) (services.SearchParams, error) {
	q := r.URL.Query()
	page, limit, err := pageParams(r)
	if err != nil {
		return services.SearchParams{}, err
	}

	p := services.SearchParams{
		Query:         q.Get("q"),
		Page:          page,
		Limit:         limit,
		Type:          q.Get("type"),
		Status:        q.Get("status"),
		Rating:        q.Get("rating"),
		Genres:        q.Get("genres"),
		GenresExclude: q.Get("genres_exclude"),
		OrderBy:       q.Get("order_by"),
		Sort:          q.Get("sort"),
		Letter:        q.Get("letter"),
		Producers:     q.Get("producers"),
		StartDate:     q.Get("start_date"),
		EndDate:       q.Get("end_date"),
	}
	for key, dst := range map[string]*float64{"min_score": &p.MinScore, "max_score": &p.MaxScore} {
		if v := q.Get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return services.SearchParams{}, fmt.Errorf("%w: %s %q", shared.ErrInvalidArgument, key, v)
			}
			*dst = f
		}
	}
	if v := q.Get("sfw"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return services.SearchParams{}, fmt.Errorf("%w: sfw %q", shared.ErrInvalidArgument, v)
		}
		p.SFW = &b
	}
	return p, nil
}
