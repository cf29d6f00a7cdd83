package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/shared"
)

const listEntryColumns = `id, user_id, anime_id, status, score, episodes_watched, is_rewatching,
	times_rewatched, start_date, finish_date, notes, created_at, updated_at`

// ListEntryRepository persists [models.ListEntry] rows. Reads and writes are scoped to a user.
type ListEntryRepository struct {
	db *sqlx.DB
}

// NewListEntryRepository creates a new [ListEntryRepository] with the given database connection
func NewListEntryRepository(db *sqlx.DB) *ListEntryRepository {
	return &ListEntryRepository{db: db}
}

// Create inserts a new entry with a generated ID.
//
// Returns [shared.ErrConflict] when the user already has the anime on their list.
func (r *ListEntryRepository) Create(ctx context.Context, e *models.ListEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	e.ID = shared.GenerateID()
	ts := now()
	e.CreatedAt, e.UpdatedAt = ts, ts

	query := r.db.Rebind(`
		INSERT INTO anime_lists (` + listEntryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.AnimeID, e.Status, e.Score, e.EpisodesWatched, e.IsRewatching,
		e.TimesRewatched, e.StartDate, e.FinishDate, e.Notes, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: anime %d is already on the list", shared.ErrConflict, e.AnimeID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert list entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID
func (r *ListEntryRepository) Get(ctx context.Context, id string) (*models.ListEntry, error) {
	var e models.ListEntry
	query := r.db.Rebind(`SELECT ` + listEntryColumns + ` FROM anime_lists WHERE id = ?`)

	err := r.db.GetContext(ctx, &e, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("list entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query list entry: %w", err)
	}
	return &e, nil
}

// GetByAnime retrieves the user's entry for an anime
func (r *ListEntryRepository) GetByAnime(ctx context.Context, userID string, animeID int) (*models.ListEntry, error) {
	var e models.ListEntry
	query := r.db.Rebind(`SELECT ` + listEntryColumns + ` FROM anime_lists WHERE user_id = ? AND anime_id = ?`)

	err := r.db.GetContext(ctx, &e, query, userID, animeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("list entry for anime", animeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query list entry: %w", err)
	}
	return &e, nil
}

// Update modifies the entry identified by e.ID, only if it belongs to e.UserID.
func (r *ListEntryRepository) Update(ctx context.Context, e *models.ListEntry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	e.UpdatedAt = now()
	query := r.db.Rebind(`
		UPDATE anime_lists
		SET status = ?, score = ?, episodes_watched = ?, is_rewatching = ?, times_rewatched = ?,
			start_date = ?, finish_date = ?, notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		e.Status, e.Score, e.EpisodesWatched, e.IsRewatching, e.TimesRewatched,
		e.StartDate, e.FinishDate, e.Notes, e.UpdatedAt, e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update list entry: %w", err)
	}
	return expectRows(result, "list entry", e.ID)
}

// Delete removes the user's entry for an anime
func (r *ListEntryRepository) Delete(ctx context.Context, userID string, animeID int) error {
	query := r.db.Rebind(`DELETE FROM anime_lists WHERE user_id = ? AND anime_id = ?`)

	result, err := r.db.ExecContext(ctx, query, userID, animeID)
	if err != nil {
		return fmt.Errorf("failed to delete list entry: %w", err)
	}
	return expectRows(result, "list entry for anime", animeID)
}

// List returns the user's entries, most recently updated first. An empty status returns all.
func (r *ListEntryRepository) List(ctx context.Context, userID string, status models.ListStatus) ([]*models.ListEntry, error) {
	query := `SELECT ` + listEntryColumns + ` FROM anime_lists WHERE user_id = ?`
	args := []any{userID}

	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status)
		}
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY updated_at DESC, id ASC"

	entries := []*models.ListEntry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query list entries: %w", err)
	}
	return entries, nil
}

// Stats summarizes the user's list: counts per status, episodes watched and score figures over entries scored above zero.
func (r *ListEntryRepository) Stats(ctx context.Context, userID string) (*models.ListStats, error) {
	var counts []struct {
		Status models.ListStatus `db:"status"`
		N      int               `db:"n"`
	}
	query := r.db.Rebind(`SELECT status, COUNT(*) AS n FROM anime_lists WHERE user_id = ? GROUP BY status`)
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to count list entries: %w", err)
	}

	stats := &models.ListStats{}
	for _, c := range counts {
		stats.AddStatus(c.Status, c.N)
	}

	var agg struct {
		Episodes int     `db:"episodes"`
		Average  float64 `db:"average"`
		Highest  int     `db:"highest"`
	}
	query = r.db.Rebind(`
		SELECT
			COALESCE(SUM(episodes_watched), 0) AS episodes,
			COALESCE(AVG(CASE WHEN score > 0 THEN score END), 0) AS average,
			COALESCE(MAX(CASE WHEN score > 0 THEN score END), 0) AS highest
		FROM anime_lists
		WHERE user_id = ?
	`)
	if err := r.db.GetContext(ctx, &agg, query, userID); err != nil {
		return nil, fmt.Errorf("failed to aggregate list entries: %w", err)
	}

	stats.TotalEpisodes = agg.Episodes
	stats.AverageScore = agg.Average
	stats.HighestScore = agg.Highest
	return stats, nil
}
