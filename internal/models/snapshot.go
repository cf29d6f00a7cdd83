package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/anilistx/internal/shared"
)

// AnimeSnapshot is catalog metadata kept locally so watch-lists render without catalog calls.
type AnimeSnapshot struct {
	AnimeID   int       `db:"anime_id" json:"anime_id"`
	Title     string    `db:"title" json:"title"`
	ImageURL  *string   `db:"image_url" json:"image_url"`
	Episodes  *int      `db:"episodes" json:"episodes"`
	Type      *string   `db:"anime_type" json:"type"`
	Score     *float64  `db:"score" json:"score"`
	FetchedAt time.Time `db:"fetched_at" json:"fetched_at"`
}

func (s *AnimeSnapshot) Key() string { return fmt.Sprint(s.AnimeID) }

func (s *AnimeSnapshot) Validate() error {
	if s.AnimeID <= 0 {
		return fmt.Errorf("%w: anime id must be positive", shared.ErrInvalidInput)
	}
	if s.Title == "" {
		return fmt.Errorf("%w: snapshot title is required", shared.ErrInvalidInput)
	}
	return nil
}

// Fresh reports whether the snapshot was fetched within maxAge of now.
func (s *AnimeSnapshot) Fresh(maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && now.Sub(s.FetchedAt) < maxAge
}
