package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/anilistx/internal/shared"
)

const (
	MinReviewScore = 1
	MaxReviewScore = 10
)

// Author is the public profile data attached to a review.
type Author struct {
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// Review is a user's review of one anime.
type Review struct {
	ID               string    `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"user_id"`
	AnimeID          int       `db:"anime_id" json:"anime_id"`
	Title            string    `db:"title" json:"title"`
	ReviewText       string    `db:"review_text" json:"review_text"`
	Score            int       `db:"score" json:"score"`
	ContainsSpoilers bool      `db:"contains_spoilers" json:"contains_spoilers"`
	IsApproved       bool      `db:"is_approved" json:"is_approved"`
	HelpfulCount     int       `db:"helpful_count" json:"helpful_count"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`

	Author *Author `db:"-" json:"user_profiles,omitempty"`
}

func (r *Review) Key() string { return r.ID }

func (r *Review) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if r.AnimeID <= 0 {
		return fmt.Errorf("%w: anime id must be positive", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(r.ReviewText) == "" {
		return fmt.Errorf("%w: review text is required", shared.ErrInvalidInput)
	}
	if r.Score < MinReviewScore || r.Score > MaxReviewScore {
		return fmt.Errorf("%w: score must be between %d and %d", shared.ErrInvalidInput, MinReviewScore, MaxReviewScore)
	}
	return nil
}

// ReviewFilter selects reviews; empty fields do not filter.
type ReviewFilter struct {
	AnimeID  int
	ReviewID string
	UserID   string
}

// Empty reports whether no field is set.
func (f ReviewFilter) Empty() bool {
	return f.AnimeID == 0 && f.ReviewID == "" && f.UserID == ""
}

// ReviewInput is the body of a review create or update request.
//
// On update, nil fields keep their stored value.
type ReviewInput struct {
	ID               string  `json:"id,omitempty"`
	AnimeID          *int    `json:"anime_id,omitempty"`
	Title            *string `json:"title,omitempty"`
	ReviewText       *string `json:"review_text,omitempty"`
	Score            *int    `json:"score,omitempty"`
	ContainsSpoilers *bool   `json:"contains_spoilers,omitempty"`
}

// MissingRequired reports whether a field needed to create a review is absent.
//
// Anime id, title and text must be non-zero; score only has to be present and is range-checked by [Review.Validate].
func (in ReviewInput) MissingRequired() bool {
	return in.AnimeID == nil || *in.AnimeID == 0 ||
		in.Title == nil || *in.Title == "" ||
		in.ReviewText == nil || *in.ReviewText == "" ||
		in.Score == nil
}

// Apply copies the non-nil fields onto r. ID, AnimeID and ownership are never changed.
func (in ReviewInput) Apply(r *Review) {
	if in.Title != nil {
		r.Title = *in.Title
	}
	if in.ReviewText != nil {
		r.ReviewText = *in.ReviewText
	}
	if in.Score != nil {
		r.Score = *in.Score
	}
	if in.ContainsSpoilers != nil {
		r.ContainsSpoilers = *in.ContainsSpoilers
	}
}
