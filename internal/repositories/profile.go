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

const profileColumns = `id, username, display_name, avatar_url, bio, created_at, updated_at`

// ProfileRepository implements [models.Repository] for [models.Profile] persistence.
type ProfileRepository struct {
	db *sqlx.DB
}

var _ models.Repository[*models.Profile] = (*ProfileRepository)(nil)

// NewProfileRepository creates a new [ProfileRepository] with the given database connection
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a profile. The id must already be set to the auth user id.
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	query := r.db.Rebind(`
		INSERT INTO user_profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Username, p.DisplayName, p.AvatarURL, p.Bio, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: profile or username %q", shared.ErrConflict, p.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by user id
func (r *ProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	query := r.db.Rebind(`SELECT ` + profileColumns + ` FROM user_profiles WHERE id = ?`)

	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("profile", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &p, nil
}

// GetByUsername retrieves a profile by its unique username
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var p models.Profile
	query := r.db.Rebind(`SELECT ` + profileColumns + ` FROM user_profiles WHERE username = ?`)

	err := r.db.GetContext(ctx, &p, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("profile", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	return &p, nil
}

// Update modifies an existing profile
func (r *ProfileRepository) Update(ctx context.Context, p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p.UpdatedAt = now()
	query := r.db.Rebind(`
		UPDATE user_profiles
		SET username = ?, display_name = ?, avatar_url = ?, bio = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.ExecContext(ctx, query, p.Username, p.DisplayName, p.AvatarURL, p.Bio, p.UpdatedAt, p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q", shared.ErrConflict, p.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return expectRows(result, "profile", p.ID)
}

// Upsert creates the profile or updates it in place, keeping the original created_at.
func (r *ProfileRepository) Upsert(ctx context.Context, p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ts := now()
	query := r.db.Rebind(`
		INSERT INTO user_profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			bio = excluded.bio,
			updated_at = excluded.updated_at
	`)

	_, err := r.db.ExecContext(ctx, query, p.ID, p.Username, p.DisplayName, p.AvatarURL, p.Bio, ts, ts)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q", shared.ErrConflict, p.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	stored, err := r.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// Delete removes a profile by user id
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM user_profiles WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return expectRows(result, "profile", id)
}

// expectRows turns a zero-row write into [shared.ErrNotFound].
func expectRows(result sql.Result, entity string, id any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound(entity, id)
	}
	return nil
}
