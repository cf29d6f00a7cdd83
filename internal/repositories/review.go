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

const reviewSelect = `
	SELECT r.id, r.user_id, r.anime_id, r.title, r.review_text, r.score, r.contains_spoilers,
		r.is_approved, r.helpful_count, r.created_at, r.updated_at,
		p.username AS author_username, p.display_name AS author_display_name, p.avatar_url AS author_avatar_url
	FROM user_reviews r
	LEFT JOIN user_profiles p ON p.id = r.user_id
`

// DuplicateReviewError is returned when a user reviews the same anime twice.
type DuplicateReviewError struct {
	ExistingID string
}

func (e *DuplicateReviewError) Error() string {
	return fmt.Sprintf("review already exists: %s", e.ExistingID)
}

func (e *DuplicateReviewError) Unwrap() error { return shared.ErrConflict }

// reviewRow is a review joined with its author's profile, which may be missing.
type reviewRow struct {
	models.Review
	AuthorUsername    sql.NullString `db:"author_username"`
	AuthorDisplayName sql.NullString `db:"author_display_name"`
	AuthorAvatarURL   sql.NullString `db:"author_avatar_url"`
}

func (row *reviewRow) toModel() *models.Review {
	r := row.Review
	if row.AuthorUsername.Valid {
		r.Author = &models.Author{
			Username:    row.AuthorUsername.String,
			DisplayName: nullString(row.AuthorDisplayName),
			AvatarURL:   nullString(row.AuthorAvatarURL),
		}
	}
	return &r
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// ReviewRepository implements [models.Repository] for [models.Review] persistence.
type ReviewRepository struct {
	db *sqlx.DB
}

var _ models.Repository[*models.Review] = (*ReviewRepository)(nil)

// NewReviewRepository creates a new [ReviewRepository] with the given database connection
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a new, approved review with a generated ID.
//
// Returns a [*DuplicateReviewError] carrying the existing review's ID when the user has already reviewed the anime.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if err := review.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if existing, err := r.FindByUserAndAnime(ctx, review.UserID, review.AnimeID); err == nil {
		return &DuplicateReviewError{ExistingID: existing.ID}
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	review.ID = shared.GenerateID()
	review.IsApproved = true
	ts := now()
	review.CreatedAt, review.UpdatedAt = ts, ts

	query := r.db.Rebind(`
		INSERT INTO user_reviews (id, user_id, anime_id, title, review_text, score, contains_spoilers,
			is_approved, helpful_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		review.ID, review.UserID, review.AnimeID, review.Title, review.ReviewText, review.Score,
		review.ContainsSpoilers, review.IsApproved, review.HelpfulCount, review.CreatedAt, review.UpdatedAt,
	)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent insert for the same user and anime.
		if existing, findErr := r.FindByUserAndAnime(ctx, review.UserID, review.AnimeID); findErr == nil {
			return &DuplicateReviewError{ExistingID: existing.ID}
		}
		return fmt.Errorf("%w: review for anime %d", shared.ErrConflict, review.AnimeID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// Get retrieves a review by ID with its author
func (r *ReviewRepository) Get(ctx context.Context, id string) (*models.Review, error) {
	return r.getOne(ctx, "review", id, reviewSelect+` WHERE r.id = ?`, id)
}

// FindByUserAndAnime retrieves the user's review of an anime
func (r *ReviewRepository) FindByUserAndAnime(ctx context.Context, userID string, animeID int) (*models.Review, error) {
	return r.getOne(ctx, "review for anime", animeID, reviewSelect+` WHERE r.user_id = ? AND r.anime_id = ?`, userID, animeID)
}

func (r *ReviewRepository) getOne(ctx context.Context, entity string, id any, query string, args ...any) (*models.Review, error) {
	var row reviewRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query review: %w", err)
	}
	return row.toModel(), nil
}

// Update rewrites the editable fields of a review and refreshes updated_at.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	if err := review.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	review.UpdatedAt = now()
	query := r.db.Rebind(`
		UPDATE user_reviews
		SET title = ?, review_text = ?, score = ?, contains_spoilers = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query,
		review.Title, review.ReviewText, review.Score, review.ContainsSpoilers, review.UpdatedAt, review.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return expectRows(result, "review", review.ID)
}

// Delete removes a review by ID
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_reviews WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return expectRows(result, "review", id)
}

// List returns reviews matching every set field of the filter, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]*models.Review, error) {
	query := reviewSelect + ` WHERE 1 = 1`
	args := []any{}

	if filter.AnimeID != 0 {
		query += " AND r.anime_id = ?"
		args = append(args, filter.AnimeID)
	}
	if filter.ReviewID != "" {
		query += " AND r.id = ?"
		args = append(args, filter.ReviewID)
	}
	if filter.UserID != "" {
		query += " AND r.user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY r.created_at DESC, r.id ASC"

	var rows []reviewRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}

	reviews := make([]*models.Review, 0, len(rows))
	for i := range rows {
		reviews = append(reviews, rows[i].toModel())
	}
	return reviews, nil
}
