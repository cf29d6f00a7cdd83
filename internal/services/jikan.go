// Jikan API implementation of [Catalog]
//
// Response types based on https://docs.api.jikan.moe/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/anilistx/internal/shared"
)

const (
	jikanBaseURL      = "https://api.jikan.moe/v4"
	defaultTimeout    = 10 * time.Second
	defaultRate       = 3
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 10 * time.Second
	maxErrorBody      = 4 << 10
)

// APIError is a non-2xx response from an upstream API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	RetryAfter time.Duration
	ResourceID string // Conflicting resource, when the server reports one
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap maps the status code onto the shared error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.StatusCode == http.StatusUnauthorized:
		return shared.ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return shared.ErrForbidden
	case e.StatusCode == http.StatusConflict:
		return shared.ErrConflict
	case e.StatusCode == http.StatusBadRequest:
		return shared.ErrInvalidInput
	case e.StatusCode >= 500:
		return shared.ErrServiceUnavailable
	}
	return shared.ErrAPIRequest
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// transportError is a failure to get any response at all.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() []error {
	return []error{shared.ErrServiceUnavailable, e.err}
}

// JikanOptions configures a [JikanService]. Zero values select defaults.
type JikanOptions struct {
	BaseURL        string
	HTTPClient     *http.Client
	Timeout        time.Duration
	RateLimit      float64
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *log.Logger
	Recorder       Recorder
}

// JikanOptionsFromConfig maps the [catalog] config section onto [JikanOptions].
func JikanOptionsFromConfig(cfg shared.CatalogConfig) JikanOptions {
	return JikanOptions{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout.Duration,
		RateLimit:      cfg.RateLimit,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff.Duration,
	}
}

// JikanService implements [Catalog] over the Jikan v4 REST API.
type JikanService struct {
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	limiter        *rate.Limiter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *log.Logger
	recorder       Recorder
}

// NewJikanService creates a rate-limited Jikan client.
func NewJikanService(opts JikanOptions) *JikanService {
	if opts.BaseURL == "" {
		opts.BaseURL = jikanBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRate
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	return &JikanService{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		httpClient:     opts.HTTPClient,
		timeout:        opts.Timeout,
		limiter:        rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		maxRetries:     opts.MaxRetries,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		logger:         opts.Logger,
		recorder:       opts.Recorder,
	}
}

func (j *JikanService) SearchAnime(ctx context.Context, params SearchParams) (*Page[Anime], error) {
	var page Page[Anime]
	if err := j.doRequest(ctx, searchRequest(params), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (j *JikanService) GetAnimeByID(ctx context.Context, id int) (*Anime, error) {
	req, err := animeRequest(id)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data Anime `json:"data"`
	}
	if err := j.doRequest(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (j *JikanService) GetTopAnime(ctx context.Context, filter TopFilter, page, limit int) (*Page[Anime], error) {
	req, err := topRequest(filter, page, limit)
	if err != nil {
		return nil, err
	}

	var resp Page[Anime]
	if err := j.doRequest(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (j *JikanService) GetSeasonalAnime(ctx context.Context, year int, season Season, page, limit int) (*Page[Anime], error) {
	req, err := seasonalRequest(year, season, page, limit)
	if err != nil {
		return nil, err
	}

	var resp Page[Anime]
	if err := j.doRequest(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (j *JikanService) GetAnimeRecommendations(ctx context.Context, id int) ([]Recommendation, error) {
	req, err := recommendationsRequest(id)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data []Recommendation `json:"data"`
	}
	if err := j.doRequest(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (j *JikanService) GetGenres(ctx context.Context) ([]Resource, error) {
	var resp struct {
		Data []Resource `json:"data"`
	}
	if err := j.doRequest(ctx, genresRequest(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (j *JikanService) GetRandomAnime(ctx context.Context) (*Anime, error) {
	var resp struct {
		Data Anime `json:"data"`
	}
	if err := j.doRequest(ctx, randomRequest(), &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// doRequest performs a rate-limited GET with retries and decodes the JSON body into result.
//
// Network errors, 429 and 5xx responses are retried with exponential backoff, preferring the
// server's Retry-After. Other errors are returned immediately.
func (j *JikanService) doRequest(ctx context.Context, req request, result any) error {
	endpoint := j.baseURL + req.signature()
	backoff := j.initialBackoff

	for attempt := 0; ; attempt++ {
		if err := j.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", req.op, ctxErr(ctx, err))
		}

		err := j.attempt(ctx, req.op, endpoint, result)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", req.op, ctx.Err())
		}
		if !retryable(err) || attempt >= j.maxRetries {
			return err
		}

		delay := backoff
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}
		delay = min(delay, j.maxBackoff)

		j.recorder.UpstreamRetry(req.op)
		j.logger.Warn("retrying catalog request", "op", req.op, "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", req.op, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, j.maxBackoff)
	}
}

// attempt sends a single request under the per-request timeout.
func (j *JikanService) attempt(ctx context.Context, op, endpoint string, result any) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := j.httpClient.Do(req)
	if err != nil {
		j.recorder.UpstreamRequest(op, 0, time.Since(start))
		if errors.Is(err, context.DeadlineExceeded) {
			return &transportError{err: fmt.Errorf("%s: %w: %v", op, shared.ErrTimeout, err)}
		}
		return &transportError{err: fmt.Errorf("%s: request failed: %w", op, err)}
	}
	defer resp.Body.Close()
	j.recorder.UpstreamRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: %w: failed to decode response: %v", op, shared.ErrAPIRequest, err)
	}
	return nil
}

// newAPIError builds an [APIError] from a failed response, reading the catalog's error message when present.
func newAPIError(op string, resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Endpoint:   op,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

// ctxErr prefers the context's own error over the limiter's wrapping of it.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
