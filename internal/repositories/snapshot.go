package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/services"
)

const snapshotColumns = `anime_id, title, image_url, episodes, anime_type, score, fetched_at`

// SnapshotRepository persists [models.AnimeSnapshot] rows keyed by anime id.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new [SnapshotRepository] with the given database connection
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert stores a snapshot, replacing any previous one for the same anime.
func (r *SnapshotRepository) Upsert(ctx context.Context, s *models.AnimeSnapshot) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if s.FetchedAt.IsZero() {
		s.FetchedAt = now()
	}

	query := r.db.Rebind(`
		INSERT INTO anime_snapshots (` + snapshotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (anime_id) DO UPDATE SET
			title = excluded.title,
			image_url = excluded.image_url,
			episodes = excluded.episodes,
			anime_type = excluded.anime_type,
			score = excluded.score,
			fetched_at = excluded.fetched_at
	`)
	_, err := r.db.ExecContext(ctx, query, s.AnimeID, s.Title, s.ImageURL, s.Episodes, s.Type, s.Score, s.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for an anime
func (r *SnapshotRepository) Get(ctx context.Context, animeID int) (*models.AnimeSnapshot, error) {
	var s models.AnimeSnapshot
	query := r.db.Rebind(`SELECT ` + snapshotColumns + ` FROM anime_snapshots WHERE anime_id = ?`)

	err := r.db.GetContext(ctx, &s, query, animeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("snapshot", animeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return &s, nil
}

// GetMany returns the stored snapshots for the given ids. Ids without a snapshot are absent from the map.
func (r *SnapshotRepository) GetMany(ctx context.Context, animeIDs []int) (map[int]*models.AnimeSnapshot, error) {
	found := make(map[int]*models.AnimeSnapshot, len(animeIDs))
	if len(animeIDs) == 0 {
		return found, nil
	}

	query, args, err := sqlx.In(`SELECT `+snapshotColumns+` FROM anime_snapshots WHERE anime_id IN (?)`, animeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot query: %w", err)
	}

	var snapshots []*models.AnimeSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	for _, s := range snapshots {
		found[s.AnimeID] = s
	}
	return found, nil
}

// SnapshotCacheAdapter implements tasks.SnapshotCacher using [SnapshotRepository].
//
// Provides snapshot lookups for enrichment and stores freshly fetched catalog entries.
type SnapshotCacheAdapter struct {
	repo *SnapshotRepository
}

// NewSnapshotCacheAdapter creates a new SnapshotCacheAdapter with the given repository
func NewSnapshotCacheAdapter(repo *SnapshotRepository) *SnapshotCacheAdapter {
	return &SnapshotCacheAdapter{repo: repo}
}

// Lookup returns stored snapshots for the given anime ids.
func (a *SnapshotCacheAdapter) Lookup(ctx context.Context, animeIDs []int) (map[int]*models.AnimeSnapshot, error) {
	return a.repo.GetMany(ctx, animeIDs)
}

// CacheAnime stores a snapshot of a catalog entry fetched now.
func (a *SnapshotCacheAdapter) CacheAnime(ctx context.Context, anime services.Anime) (*models.AnimeSnapshot, error) {
	s := anime.Snapshot(now())
	if err := a.repo.Upsert(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to cache anime %d: %w", anime.MalID, err)
	}
	return s, nil
}
