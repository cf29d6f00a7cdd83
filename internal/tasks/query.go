package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/anilistx/internal/services"
	"github.com/desertthunder/anilistx/internal/shared"
)

// ErrStale is returned by [Query.Fetch] when a newer fetch started before this one finished.
var ErrStale = errors.New("stale response discarded")

// State is a snapshot of a [Query]: the loading flag, the last error and the data to display.
type State[P, T any] struct {
	Params    P
	Data      T
	Err       error
	Loading   bool
	RequestID uint64
}

// Fetcher loads data for a set of parameters.
type Fetcher[P, T any] func(ctx context.Context, params P) (T, error)

// Query tracks the latest fetch for a view.
//
// Every Fetch gets a higher request id. Only the response to the most recent Fetch is
// published; earlier ones that finish late are dropped.
type Query[P, T any] struct {
	fetch    Fetcher[P, T]
	fallback func(P) T
	valid    func(T) bool
	logger   *log.Logger

	mu        sync.Mutex
	seq       uint64
	state     State[P, T]
	hasParams bool
	subs      map[uint64]chan State[P, T]
	nextSub   uint64
}

// QueryOption configures a [Query].
type QueryOption[P, T any] func(*Query[P, T])

// WithFallback sets the data published when a fetch fails or returns an invalid payload.
func WithFallback[P, T any](fn func(P) T) QueryOption[P, T] {
	return func(q *Query[P, T]) { q.fallback = fn }
}

// WithValidator rejects payloads for which fn returns false.
func WithValidator[P, T any](fn func(T) bool) QueryOption[P, T] {
	return func(q *Query[P, T]) { q.valid = fn }
}

// WithQueryLogger sets the logger for failed fetches.
func WithQueryLogger[P, T any](l *log.Logger) QueryOption[P, T] {
	return func(q *Query[P, T]) { q.logger = l }
}

// NewQuery creates a Query around fetch.
func NewQuery[P, T any](fetch func(ctx context.Context, params P) (T, error), opts ...QueryOption[P, T]) *Query[P, T] {
	q := &Query[P, T]{
		fetch:  fetch,
		logger: log.New(io.Discard),
		subs:   make(map[uint64]chan State[P, T]),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewPageQuery creates a Query over a paginated catalog call.
//
// A failed fetch, or a page with no data slice or pagination, publishes an empty page for
// the requested page and limit instead.
func NewPageQuery[P, A any](
	fetch func(ctx context.Context, params P) (*services.Page[A], error),
	pageOf func(P) (page, limit int),
	opts ...QueryOption[P, *services.Page[A]],
) *Query[P, *services.Page[A]] {
	base := []QueryOption[P, *services.Page[A]]{
		WithFallback(func(p P) *services.Page[A] {
			page, limit := pageOf(p)
			return services.EmptyPage[A](page, limit)
		}),
		WithValidator[P](func(p *services.Page[A]) bool {
			return p != nil && p.Data != nil && p.Pagination != nil
		}),
	}
	return NewQuery(fetch, append(base, opts...)...)
}

// State returns the current state.
func (q *Query[P, T]) State() State[P, T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Fetch loads params and publishes the outcome if no newer Fetch has started.
//
// On failure the published Data is the fallback (or the zero value) and the error is also
// returned. A superseded fetch returns [ErrStale] and publishes nothing.
func (q *Query[P, T]) Fetch(ctx context.Context, params P) (State[P, T], error) {
	q.mu.Lock()
	q.seq++
	id := q.seq
	q.hasParams = true
	q.state.Params = params
	q.state.Loading = true
	q.state.Err = nil
	q.state.RequestID = id
	q.publishLocked(q.state)
	q.mu.Unlock()

	data, err := q.fetch(ctx, params)
	if err == nil && q.valid != nil && !q.valid(data) {
		err = fmt.Errorf("%w: invalid payload", shared.ErrAPIRequest)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if id != q.seq {
		return State[P, T]{Params: params, RequestID: id}, ErrStale
	}

	next := State[P, T]{Params: params, RequestID: id, Data: data}
	if err != nil {
		q.logger.Warn("query fetch failed", "request_id", id, "error", err)
		var zero T
		next.Data = zero
		next.Err = err
		if q.fallback != nil {
			next.Data = q.fallback(params)
		}
	}
	q.state = next
	q.publishLocked(next)
	return next, err
}

// Refresh re-runs Fetch with the last params.
func (q *Query[P, T]) Refresh(ctx context.Context) (State[P, T], error) {
	q.mu.Lock()
	if !q.hasParams {
		q.mu.Unlock()
		return State[P, T]{}, fmt.Errorf("%w: nothing fetched yet", shared.ErrMissingArgument)
	}
	params := q.state.Params
	q.mu.Unlock()
	return q.Fetch(ctx, params)
}

// Subscribe returns a channel receiving every published state and a function that closes it.
//
// Sends never block: a subscriber that is not keeping up misses states.
func (q *Query[P, T]) Subscribe(buffer int) (<-chan State[P, T], func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State[P, T], buffer)

	q.mu.Lock()
	q.nextSub++
	id := q.nextSub
	q.subs[id] = ch
	q.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
			close(ch)
		})
	}
}

func (q *Query[P, T]) publishLocked(s State[P, T]) {
	for _, ch := range q.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// CollectPages fetches page 1, 2, ... until has_next_page is false or maxPages pages were read.
//
// maxPages <= 0 means no limit. On error the items gathered so far are returned with it.
func CollectPages[T any](
	ctx context.Context,
	fetch func(ctx context.Context, page int) (*services.Page[T], error),
	maxPages int,
) ([]T, error) {
	var all []T
	for page := 1; maxPages <= 0 || page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		p, err := fetch(ctx, page)
		if err != nil {
			return all, err
		}
		if p == nil {
			break
		}
		all = append(all, p.Data...)
		if p.Pagination == nil || !p.Pagination.HasNextPage {
			break
		}
	}
	return all, nil
}
