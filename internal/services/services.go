// Catalog interface, DTOs and request signatures
package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/shared"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
	MaxLimit     = 25
)

// Catalog defines read-only access to anime metadata.
type Catalog interface {
	// SearchAnime searches by free text and optional filters.
	SearchAnime(ctx context.Context, params SearchParams) (*Page[Anime], error)

	// GetAnimeByID retrieves a single anime by its MyAnimeList id.
	GetAnimeByID(ctx context.Context, id int) (*Anime, error)

	// GetTopAnime lists top-ranked anime, optionally narrowed by filter.
	GetTopAnime(ctx context.Context, filter TopFilter, page, limit int) (*Page[Anime], error)

	// GetSeasonalAnime lists a season's anime; the current season when year or season is zero.
	GetSeasonalAnime(ctx context.Context, year int, season Season, page, limit int) (*Page[Anime], error)

	GetAnimeRecommendations(ctx context.Context, id int) ([]Recommendation, error)

	GetGenres(ctx context.Context) ([]Resource, error)

	GetRandomAnime(ctx context.Context) (*Anime, error)
}

// Recorder receives catalog instrumentation events.
type Recorder interface {
	UpstreamRequest(op string, status int, elapsed time.Duration)
	UpstreamRetry(op string)
	CacheResult(op, result string)
}

type nopRecorder struct{}

func (nopRecorder) UpstreamRequest(string, int, time.Duration) {}
func (nopRecorder) UpstreamRetry(string)                       {}
func (nopRecorder) CacheResult(string, string)                 {}

// TopFilter narrows the top anime listing.
type TopFilter string

const (
	TopAll          TopFilter = ""
	TopAiring       TopFilter = "airing"
	TopUpcoming     TopFilter = "upcoming"
	TopByPopularity TopFilter = "bypopularity"
	TopFavorite     TopFilter = "favorite"
)

// Valid reports whether f is a filter the catalog accepts.
func (f TopFilter) Valid() bool {
	switch f {
	case TopAll, TopAiring, TopUpcoming, TopByPopularity, TopFavorite:
		return true
	}
	return false
}

// Season is a broadcast season.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

// ParseSeason parses a season name case-insensitively. The empty string parses to "".
func ParseSeason(s string) (Season, error) {
	switch v := Season(strings.ToLower(strings.TrimSpace(s))); v {
	case "", Winter, Spring, Summer, Fall:
		return v, nil
	}
	return "", fmt.Errorf("%w: season %q (want winter, spring, summer or fall)", shared.ErrInvalidArgument, s)
}

// ImageSet holds the sizes of one image format.
type ImageSet struct {
	ImageURL      string `json:"image_url"`
	SmallImageURL string `json:"small_image_url"`
	LargeImageURL string `json:"large_image_url"`
}

// Images holds cover art in each format.
type Images struct {
	JPG  ImageSet `json:"jpg"`
	WebP ImageSet `json:"webp"`
}

// Trailer is an embedded promotional video.
type Trailer struct {
	YoutubeID string `json:"youtube_id"`
	URL       string `json:"url"`
	EmbedURL  string `json:"embed_url"`
}

// Title is one localized title.
type Title struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Aired is the broadcast interval.
type Aired struct {
	From   *string `json:"from"`
	To     *string `json:"to"`
	String string  `json:"string"`
}

// Resource is a named catalog reference (genre, studio, producer).
type Resource struct {
	MalID int    `json:"mal_id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Count int    `json:"count,omitempty"`
}

// Anime is a catalog entry. Numeric fields the catalog may omit are pointers.
type Anime struct {
	MalID         int        `json:"mal_id"`
	URL           string     `json:"url"`
	Images        Images     `json:"images"`
	Trailer       Trailer    `json:"trailer"`
	Approved      bool       `json:"approved"`
	Titles        []Title    `json:"titles"`
	Title         string     `json:"title"`
	TitleEnglish  string     `json:"title_english"`
	TitleJapanese string     `json:"title_japanese"`
	TitleSynonyms []string   `json:"title_synonyms"`
	Type          string     `json:"type"`
	Source        string     `json:"source"`
	Episodes      *int       `json:"episodes"`
	Status        string     `json:"status"`
	Airing        bool       `json:"airing"`
	Aired         Aired      `json:"aired"`
	Duration      string     `json:"duration"`
	Rating        string     `json:"rating"`
	Score         *float64   `json:"score"`
	ScoredBy      *int       `json:"scored_by"`
	Rank          *int       `json:"rank"`
	Popularity    int        `json:"popularity"`
	Members       int        `json:"members"`
	Favorites     int        `json:"favorites"`
	Synopsis      string     `json:"synopsis"`
	Background    string     `json:"background"`
	Season        string     `json:"season"`
	Year          *int       `json:"year"`
	Genres        []Resource `json:"genres"`
	Studios       []Resource `json:"studios"`
}

// DisplayTitle prefers the English title.
func (a Anime) DisplayTitle() string {
	if a.TitleEnglish != "" {
		return a.TitleEnglish
	}
	return a.Title
}

// PaginationItems counts the items of a page.
type PaginationItems struct {
	Count   int `json:"count"`
	Total   int `json:"total"`
	PerPage int `json:"per_page"`
}

// Pagination describes where a page sits in a listing.
type Pagination struct {
	LastVisiblePage int             `json:"last_visible_page"`
	HasNextPage     bool            `json:"has_next_page"`
	CurrentPage     int             `json:"current_page"`
	Items           PaginationItems `json:"items"`
}

// Page is a paginated catalog response envelope.
type Page[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

// EmptyPage is the page shown when a listing has nothing to show.
func EmptyPage[T any](page, limit int) *Page[T] {
	return &Page[T]{
		Data: []T{},
		Pagination: &Pagination{
			LastVisiblePage: 1,
			CurrentPage:     NormalizePage(page),
			Items:           PaginationItems{PerPage: NormalizeLimit(limit)},
		},
	}
}

// RecommendationEntry is the recommended anime.
type RecommendationEntry struct {
	MalID  int    `json:"mal_id"`
	URL    string `json:"url"`
	Images Images `json:"images"`
	Title  string `json:"title"`
}

// Recommendation pairs a recommended anime with its vote count.
type Recommendation struct {
	Entry RecommendationEntry `json:"entry"`
	URL   string              `json:"url"`
	Votes int                 `json:"votes"`
}

// SearchParams are the anime search filters. Zero values are omitted from the request.
type SearchParams struct {
	Query         string  `json:"q"`
	Page          int     `json:"page"`
	Limit         int     `json:"limit"`
	Type          string  `json:"type"`
	Status        string  `json:"status"`
	Rating        string  `json:"rating"`
	Genres        string  `json:"genres"`
	GenresExclude string  `json:"genres_exclude"`
	MinScore      float64 `json:"min_score"`
	MaxScore      float64 `json:"max_score"`
	SFW           *bool   `json:"sfw"`
	OrderBy       string  `json:"order_by"`
	Sort          string  `json:"sort"`
	Letter        string  `json:"letter"`
	Producers     string  `json:"producers"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
}

// Values encodes the parameters as a query. q and page are always present.
func (p SearchParams) Values() url.Values {
	q := url.Values{}
	q.Set("q", p.Query)
	q.Set("page", strconv.Itoa(NormalizePage(p.Page)))

	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(NormalizeLimit(p.Limit)))
	}
	setIf := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	setIf("type", p.Type)
	setIf("status", p.Status)
	setIf("rating", p.Rating)
	setIf("genres", p.Genres)
	setIf("genres_exclude", p.GenresExclude)
	if p.MinScore != 0 {
		q.Set("min_score", strconv.FormatFloat(p.MinScore, 'f', -1, 64))
	}
	if p.MaxScore != 0 {
		q.Set("max_score", strconv.FormatFloat(p.MaxScore, 'f', -1, 64))
	}
	if p.SFW != nil {
		q.Set("sfw", strconv.FormatBool(*p.SFW))
	}
	setIf("order_by", p.OrderBy)
	setIf("sort", p.Sort)
	setIf("letter", p.Letter)
	setIf("producers", p.Producers)
	setIf("start_date", p.StartDate)
	setIf("end_date", p.EndDate)
	return q
}

// NormalizePage defaults non-positive pages to the first page.
func NormalizePage(page int) int {
	if page < 1 {
		return DefaultPage
	}
	return page
}

// NormalizeLimit defaults non-positive limits and caps the rest at [MaxLimit].
func NormalizeLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// request is a catalog call resolved to a path and query.
type request struct {
	op    string
	path  string
	query url.Values
}

// signature identifies a request for caching: path plus sorted query encoding.
func (r request) signature() string {
	if len(r.query) == 0 {
		return r.path
	}
	return r.path + "?" + r.query.Encode()
}

func searchRequest(p SearchParams) request {
	return request{op: "search", path: "/anime", query: p.Values()}
}

func animeRequest(id int) (request, error) {
	if id <= 0 {
		return request{}, fmt.Errorf("%w: anime id must be positive, got %d", shared.ErrInvalidArgument, id)
	}
	return request{op: "anime", path: "/anime/" + strconv.Itoa(id)}, nil
}

func topRequest(filter TopFilter, page, limit int) (request, error) {
	if !filter.Valid() {
		return request{}, fmt.Errorf("%w: top filter %q", shared.ErrInvalidArgument, filter)
	}
	q := pageQuery(page, limit)
	if filter != TopAll {
		q.Set("filter", string(filter))
	}
	return request{op: "top", path: "/top/anime", query: q}, nil
}

func seasonalRequest(year int, season Season, page, limit int) (request, error) {
	season, err := ParseSeason(string(season))
	if err != nil {
		return request{}, err
	}
	if year < 0 {
		return request{}, fmt.Errorf("%w: year %d", shared.ErrInvalidArgument, year)
	}

	path := "/seasons/now"
	if year > 0 && season != "" {
		path = fmt.Sprintf("/seasons/%d/%s", year, season)
	}
	return request{op: "seasonal", path: path, query: pageQuery(page, limit)}, nil
}

func recommendationsRequest(id int) (request, error) {
	if id <= 0 {
		return request{}, fmt.Errorf("%w: anime id must be positive, got %d", shared.ErrInvalidArgument, id)
	}
	return request{op: "recommendations", path: fmt.Sprintf("/anime/%d/recommendations", id)}, nil
}

func genresRequest() request {
	return request{op: "genres", path: "/genres/anime"}
}

func randomRequest() request {
	return request{op: "random", path: "/random/anime"}
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(NormalizePage(page)))
	q.Set("limit", strconv.Itoa(NormalizeLimit(limit)))
	return q
}

// Snapshot extracts the fields a watch-list needs to render this anime.
func (a Anime) Snapshot(fetchedAt time.Time) *models.AnimeSnapshot {
	s := &models.AnimeSnapshot{
		AnimeID:   a.MalID,
		Title:     a.DisplayTitle(),
		Episodes:  a.Episodes,
		Score:     a.Score,
		FetchedAt: fetchedAt.UTC(),
	}
	if img := a.Images.JPG.ImageURL; img != "" {
		s.ImageURL = &img
	}
	if a.Type != "" {
		t := a.Type
		s.Type = &t
	}
	return s
}
