package tasks

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/services"
)

// SnapshotCacher persists catalog metadata for watch-list rendering.
//
// Implemented by repositories.SnapshotCacheAdapter.
type SnapshotCacher interface {
	Lookup(ctx context.Context, animeIDs []int) (map[int]*models.AnimeSnapshot, error)
	CacheAnime(ctx context.Context, anime services.Anime) (*models.AnimeSnapshot, error)
}

// Engine defines the long-running catalog operations.
type Engine interface {
	// Enrich attaches catalog metadata to each watch-list entry, fetching what the snapshot store lacks.
	Enrich(ctx context.Context, progress chan<- ProgressUpdate, entries []*models.ListEntry, opts EnrichOpts) (*EnrichResult, error)

	// Warm pre-fetches the most requested catalog pages so first requests are served from cache.
	Warm(ctx context.Context, progress chan<- ProgressUpdate, opts WarmOpts) (*WarmResult, error)
}

var _ Engine = (*CatalogEngine)(nil)

// CatalogEngine implements [Engine] over a [services.Catalog].
type CatalogEngine struct {
	catalog   services.Catalog
	snapshots SnapshotCacher
	logger    *log.Logger
}

// NewCatalogEngine creates a new CatalogEngine. snapshots may be nil.
func NewCatalogEngine(catalog services.Catalog, snapshots SnapshotCacher) *CatalogEngine {
	return &CatalogEngine{
		catalog:   catalog,
		snapshots: snapshots,
		logger:    log.New(io.Discard),
	}
}

// SetLogger sets the logger used for non-fatal failures.
func (e *CatalogEngine) SetLogger(l *log.Logger) {
	if l != nil {
		e.logger = l
	}
}

// sendProgress sends a progress update without blocking.
func (e *CatalogEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
