// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

// MockCatalog is a test double for [services.Catalog] serving a fixed set of anime.
//
// Err, when set, is returned from every call. Calls counts invocations per method name.
type MockCatalog struct {
	mu     sync.Mutex
	Anime  map[int]services.Anime
	Genres []services.Resource
	Err    error

	calls map[string]*atomic.Int64
}

// NewMockCatalog creates a catalog holding the given anime.
func NewMockCatalog(anime ...services.Anime) *MockCatalog {
	m := &MockCatalog{Anime: make(map[int]services.Anime), calls: make(map[string]*atomic.Int64)}
	for _, a := range anime {
		m.Anime[a.MalID] = a
	}
	return m
}

// NewAnime builds a minimal anime for tests.
func NewAnime(id int, title string, episodes int) services.Anime {
	score := 7.5
	return services.Anime{
		MalID:    id,
		URL:      fmt.Sprintf("https://myanimelist.net/anime/%d", id),
		Title:    title,
		Type:     "TV",
		Episodes: &episodes,
		Score:    &score,
		Images: services.Images{
			JPG: services.ImageSet{ImageURL: fmt.Sprintf("https://cdn.example/%d.jpg", id)},
		},
	}
}

// Calls returns how often method was invoked.
func (m *MockCatalog) Calls(method string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.calls[method]; ok {
		return c.Load()
	}
	return 0
}

func (m *MockCatalog) record(method string) error {
	m.mu.Lock()
	c, ok := m.calls[method]
	if !ok {
		c = &atomic.Int64{}
		m.calls[method] = c
	}
	m.mu.Unlock()
	c.Add(1)
	return m.Err
}

func (m *MockCatalog) page(page, limit int) *services.Page[services.Anime] {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := services.EmptyPage[services.Anime](page, limit)
	for _, a := range m.Anime {
		p.Data = append(p.Data, a)
	}
	p.Pagination.Items.Count = len(p.Data)
	p.Pagination.Items.Total = len(p.Data)
	return p
}

func (m *MockCatalog) SearchAnime(ctx context.Context, params services.SearchParams) (*services.Page[services.Anime], error) {
	if err := m.record("SearchAnime"); err != nil {
		return nil, err
	}
	return m.page(params.Page, params.Limit), nil
}

func (m *MockCatalog) GetAnimeByID(ctx context.Context, id int) (*services.Anime, error) {
	if err := m.record("GetAnimeByID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Anime[id]
	if !ok {
		return nil, &services.APIError{StatusCode: http.StatusNotFound, Endpoint: "anime"}
	}
	return &a, nil
}

func (m *MockCatalog) GetTopAnime(ctx context.Context, filter services.TopFilter, page, limit int) (*services.Page[services.Anime], error) {
	if err := m.record("GetTopAnime"); err != nil {
		return nil, err
	}
	return m.page(page, limit), nil
}

func (m *MockCatalog) GetSeasonalAnime(ctx context.Context, year int, season services.Season, page, limit int) (*services.Page[services.Anime], error) {
	if err := m.record("GetSeasonalAnime"); err != nil {
		return nil, err
	}
	return m.page(page, limit), nil
}

func (m *MockCatalog) GetAnimeRecommendations(ctx context.Context, id int) ([]services.Recommendation, error) {
	if err := m.record("GetAnimeRecommendations"); err != nil {
		return nil, err
	}
	return []services.Recommendation{}, nil
}

func (m *MockCatalog) GetGenres(ctx context.Context) ([]services.Resource, error) {
	if err := m.record("GetGenres"); err != nil {
		return nil, err
	}
	return m.Genres, nil
}

func (m *MockCatalog) GetRandomAnime(ctx context.Context) (*services.Anime, error) {
	if err := m.record("GetRandomAnime"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Anime {
		return &a, nil
	}
	return nil, shared.ErrNotFound
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
