package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/anilistx/internal/shared"
)

const dateLayout = "2006-01-02"

// ListStatus is where an anime sits in a user's watch-list.
type ListStatus string

const (
	StatusWatching    ListStatus = "watching"
	StatusCompleted   ListStatus = "completed"
	StatusOnHold      ListStatus = "on_hold"
	StatusDropped     ListStatus = "dropped"
	StatusPlanToWatch ListStatus = "plan_to_watch"
)

// Statuses lists every status in display order.
var Statuses = []ListStatus{StatusWatching, StatusCompleted, StatusOnHold, StatusDropped, StatusPlanToWatch}

func (s ListStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ListEntry is one anime on a user's watch-list.
//
// Score is nil when unrated; dates are YYYY-MM-DD.
type ListEntry struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	AnimeID         int        `db:"anime_id" json:"anime_id"`
	Status          ListStatus `db:"status" json:"status"`
	Score           *int       `db:"score" json:"score"`
	EpisodesWatched int        `db:"episodes_watched" json:"episodes_watched"`
	IsRewatching    bool       `db:"is_rewatching" json:"is_rewatching"`
	TimesRewatched  int        `db:"times_rewatched" json:"times_rewatched"`
	StartDate       *string    `db:"start_date" json:"start_date"`
	FinishDate      *string    `db:"finish_date" json:"finish_date"`
	Notes           *string    `db:"notes" json:"notes"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Anime *AnimeSnapshot `db:"-" json:"anime,omitempty"`
}

func (e *ListEntry) Key() string { return e.ID }

func (e *ListEntry) Validate() error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if e.AnimeID <= 0 {
		return fmt.Errorf("%w: anime id must be positive", shared.ErrInvalidInput)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, e.Status)
	}
	if e.Score != nil && (*e.Score < 0 || *e.Score > 10) {
		return fmt.Errorf("%w: score must be between 0 and 10", shared.ErrInvalidInput)
	}
	if e.EpisodesWatched < 0 || e.TimesRewatched < 0 {
		return fmt.Errorf("%w: episode and rewatch counts cannot be negative", shared.ErrInvalidInput)
	}

	start, err := parseDate("start_date", e.StartDate)
	if err != nil {
		return err
	}
	finish, err := parseDate("finish_date", e.FinishDate)
	if err != nil {
		return err
	}
	if !start.IsZero() && !finish.IsZero() && finish.Before(start) {
		return fmt.Errorf("%w: finish_date is before start_date", shared.ErrInvalidInput)
	}
	return nil
}

func parseDate(field string, v *string) (time.Time, error) {
	if v == nil || *v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", shared.ErrInvalidInput, field)
	}
	return t, nil
}

// ListStats summarizes a user's watch-list.
//
// AverageScore and HighestScore only consider entries scored above zero.
type ListStats struct {
	TotalAnime    int     `json:"total_anime"`
	Watching      int     `json:"watching"`
	Completed     int     `json:"completed"`
	OnHold        int     `json:"on_hold"`
	Dropped       int     `json:"dropped"`
	PlanToWatch   int     `json:"plan_to_watch"`
	TotalEpisodes int     `json:"total_episodes"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  int     `json:"highest_score"`
}

// AddStatus adds n entries with status s to the per-status counts and total.
func (s *ListStats) AddStatus(status ListStatus, n int) {
	switch status {
	case StatusWatching:
		s.Watching += n
	case StatusCompleted:
		s.Completed += n
	case StatusOnHold:
		s.OnHold += n
	case StatusDropped:
		s.Dropped += n
	case StatusPlanToWatch:
		s.PlanToWatch += n
	}
	s.TotalAnime += n
}

// ListEntryInput is the body of a watch-list create or update request.
//
// On update, nil fields keep their stored value.
type ListEntryInput struct {
	AnimeID         *int        `json:"anime_id,omitempty"`
	Status          *ListStatus `json:"status,omitempty"`
	Score           *int        `json:"score,omitempty"`
	EpisodesWatched *int        `json:"episodes_watched,omitempty"`
	IsRewatching    *bool       `json:"is_rewatching,omitempty"`
	TimesRewatched  *int        `json:"times_rewatched,omitempty"`
	StartDate       *string     `json:"start_date,omitempty"`
	FinishDate      *string     `json:"finish_date,omitempty"`
	Notes           *string     `json:"notes,omitempty"`
}

// NewEntry builds an entry for userID, defaulting the status to plan to watch.
func (in ListEntryInput) NewEntry(userID string) *ListEntry {
	e := &ListEntry{UserID: userID, Status: StatusPlanToWatch}
	if in.AnimeID != nil {
		e.AnimeID = *in.AnimeID
	}
	in.Apply(e)
	return e
}

// Apply copies the non-nil fields onto e. The anime and owner are never changed.
func (in ListEntryInput) Apply(e *ListEntry) {
	if in.Status != nil {
		e.Status = *in.Status
	}
	if in.Score != nil {
		e.Score = in.Score
	}
	if in.EpisodesWatched != nil {
		e.EpisodesWatched = *in.EpisodesWatched
	}
	if in.IsRewatching != nil {
		e.IsRewatching = *in.IsRewatching
	}
	if in.TimesRewatched != nil {
		e.TimesRewatched = *in.TimesRewatched
	}
	if in.StartDate != nil {
		e.StartDate = emptyToNil(in.StartDate)
	}
	if in.FinishDate != nil {
		e.FinishDate = emptyToNil(in.FinishDate)
	}
	if in.Notes != nil {
		e.Notes = emptyToNil(in.Notes)
	}
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// ListExport is a user's watch-list as written by the export commands.
type ListExport struct {
	Owner      string       `json:"owner"`
	AvatarURL  *string      `json:"avatar_url,omitempty"`
	Stats      *ListStats   `json:"stats"`
	Entries    []*ListEntry `json:"entries"`
	ExportedAt time.Time    `json:"exported_at"`
}

// Title returns the entry's anime title, or a placeholder when it has not been enriched.
func (e *ListEntry) Title() string {
	if e.Anime != nil && e.Anime.Title != "" {
		return e.Anime.Title
	}
	return fmt.Sprintf("Anime #%d", e.AnimeID)
}

// Label is the human-readable status name.
func (s ListStatus) Label() string {
	switch s {
	case StatusWatching:
		return "Watching"
	case StatusCompleted:
		return "Completed"
	case StatusOnHold:
		return "On Hold"
	case StatusDropped:
		return "Dropped"
	case StatusPlanToWatch:
		return "Plan to Watch"
	}
	return string(s)
}
