package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/anilistx/internal/shared"
)

func ptr[T any](v T) *T { return &v }

func TestListEntry(t *testing.T) {
	valid := func() *ListEntry {
		return &ListEntry{UserID: "user-1", AnimeID: 21, Status: StatusWatching, Score: ptr(8), EpisodesWatched: 12}
	}

	t.Run("Valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("expected valid entry, got %v", err)
		}
	})

	t.Run("Unscored And Zero Score Are Valid", func(t *testing.T) {
		e := valid()
		e.Score = nil
		if err := e.Validate(); err != nil {
			t.Errorf("nil score: %v", err)
		}
		e.Score = ptr(0)
		if err := e.Validate(); err != nil {
			t.Errorf("zero score: %v", err)
		}
	})

	tc := []struct {
		name   string
		mutate func(*ListEntry)
	}{
		{"missing user", func(e *ListEntry) { e.UserID = "" }},
		{"non-positive anime", func(e *ListEntry) { e.AnimeID = 0 }},
		{"unknown status", func(e *ListEntry) { e.Status = "rewatching" }},
		{"score above 10", func(e *ListEntry) { e.Score = ptr(11) }},
		{"negative score", func(e *ListEntry) { e.Score = ptr(-1) }},
		{"negative episodes", func(e *ListEntry) { e.EpisodesWatched = -1 }},
		{"bad date", func(e *ListEntry) { e.StartDate = ptr("03/04/2024") }},
		{"finish before start", func(e *ListEntry) {
			e.StartDate = ptr("2024-05-01")
			e.FinishDate = ptr("2024-04-01")
		}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			if err := e.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestListStats(t *testing.T) {
	var s ListStats
	s.AddStatus(StatusWatching, 2)
	s.AddStatus(StatusCompleted, 3)
	s.AddStatus(StatusPlanToWatch, 1)
	s.AddStatus("unknown", 1)

	if s.Watching != 2 || s.Completed != 3 || s.PlanToWatch != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.TotalAnime != 7 {
		t.Errorf("expected total 7, got %d", s.TotalAnime)
	}
}

func TestReview(t *testing.T) {
	valid := func() *Review {
		return &Review{UserID: "user-1", AnimeID: 1, Title: "Great", ReviewText: "Loved it", Score: 9}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid review, got %v", err)
	}

	tc := []struct {
		name   string
		mutate func(*Review)
	}{
		{"blank title", func(r *Review) { r.Title = "   " }},
		{"blank text", func(r *Review) { r.ReviewText = "" }},
		{"score zero", func(r *Review) { r.Score = 0 }},
		{"score eleven", func(r *Review) { r.Score = 11 }},
		{"missing anime", func(r *Review) { r.AnimeID = 0 }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			if err := r.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	t.Run("ReviewFilter Empty", func(t *testing.T) {
		if !(ReviewFilter{}).Empty() {
			t.Error("zero filter should be empty")
		}
		if (ReviewFilter{UserID: "u"}).Empty() {
			t.Error("filter with user should not be empty")
		}
	})
}

func TestProfile(t *testing.T) {
	p := &Profile{ID: "user-1", Username: "spike_spiegel"}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
	if p.Name() != "spike_spiegel" {
		t.Errorf("expected username fallback, got %s", p.Name())
	}

	p.DisplayName = ptr("Spike")
	if p.Name() != "Spike" {
		t.Errorf("expected display name, got %s", p.Name())
	}

	for _, name := range []string{"", "ab", "has space", strings.Repeat("x", 31)} {
		bad := &Profile{ID: "user-1", Username: name}
		if err := bad.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("username %q: expected ErrInvalidInput, got %v", name, err)
		}
	}

	longest := &Profile{ID: "user-1", Username: strings.Repeat("x", 30)}
	if err := longest.Validate(); err != nil {
		t.Errorf("expected 30-character username to be valid, got %v", err)
	}

	tooLong := &Profile{ID: "user-1", Username: "spike", DisplayName: ptr(strings.Repeat("s", 51))}
	if err := tooLong.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("long display name: expected ErrInvalidInput, got %v", err)
	}
	tooLong = &Profile{ID: "user-1", Username: "spike", Bio: ptr(strings.Repeat("b", 501))}
	if err := tooLong.Validate(); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("long bio: expected ErrInvalidInput, got %v", err)
	}
}

func TestAnimeSnapshot(t *testing.T) {
	now := time.Now()
	s := &AnimeSnapshot{AnimeID: 1, Title: "Cowboy Bebop", FetchedAt: now.Add(-time.Hour)}

	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid snapshot, got %v", err)
	}
	if s.Key() != "1" {
		t.Errorf("expected key 1, got %s", s.Key())
	}
	if !s.Fresh(2*time.Hour, now) {
		t.Error("expected snapshot to be fresh")
	}
	if s.Fresh(30*time.Minute, now) {
		t.Error("expected snapshot to be stale")
	}
	if s.Fresh(0, now) {
		t.Error("zero max age never counts as fresh")
	}
}

func TestReviewInput(t *testing.T) {
	full := func() ReviewInput {
		return ReviewInput{AnimeID: ptr(21), Title: ptr("Great"), ReviewText: ptr("Loved it"), Score: ptr(9)}
	}

	t.Run("Complete Input", func(t *testing.T) {
		if full().MissingRequired() {
			t.Error("expected complete input")
		}
	})

	t.Run("Zero Score Is Present", func(t *testing.T) {
		in := full()
		in.Score = ptr(0)
		if in.MissingRequired() {
			t.Error("zero score should count as present")
		}
	})

	tc := []struct {
		name   string
		mutate func(*ReviewInput)
	}{
		{"no anime", func(in *ReviewInput) { in.AnimeID = nil }},
		{"zero anime", func(in *ReviewInput) { in.AnimeID = ptr(0) }},
		{"empty title", func(in *ReviewInput) { in.Title = ptr("") }},
		{"no text", func(in *ReviewInput) { in.ReviewText = nil }},
		{"no score", func(in *ReviewInput) { in.Score = nil }},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			in := full()
			tt.mutate(&in)
			if !in.MissingRequired() {
				t.Error("expected missing field")
			}
		})
	}

	t.Run("Apply Keeps Unset Fields", func(t *testing.T) {
		r := &Review{ID: "r1", UserID: "u1", AnimeID: 21, Title: "Old", ReviewText: "Old text", Score: 5}
		ReviewInput{Score: ptr(8), ContainsSpoilers: ptr(true)}.Apply(r)

		if r.Title != "Old" || r.ReviewText != "Old text" {
			t.Errorf("unset fields changed: %+v", r)
		}
		if r.Score != 8 || !r.ContainsSpoilers {
			t.Errorf("set fields not applied: %+v", r)
		}
	})
}

func TestListEntryInput(t *testing.T) {
	t.Run("NewEntry Defaults Status", func(t *testing.T) {
		e := ListEntryInput{AnimeID: ptr(5)}.NewEntry("user-1")
		if e.UserID != "user-1" || e.AnimeID != 5 {
			t.Errorf("unexpected entry %+v", e)
		}
		if e.Status != StatusPlanToWatch {
			t.Errorf("expected plan_to_watch, got %q", e.Status)
		}
	})

	t.Run("Apply", func(t *testing.T) {
		e := &ListEntry{UserID: "user-1", AnimeID: 5, Status: StatusWatching, Notes: ptr("keep?")}
		status := StatusCompleted
		ListEntryInput{
			AnimeID:         ptr(99),
			Status:          &status,
			EpisodesWatched: ptr(12),
			Notes:           ptr(""),
			FinishDate:      ptr("2024-06-01"),
		}.Apply(e)

		if e.AnimeID != 5 {
			t.Errorf("anime id must not change, got %d", e.AnimeID)
		}
		if e.Status != StatusCompleted || e.EpisodesWatched != 12 {
			t.Errorf("fields not applied: %+v", e)
		}
		if e.Notes != nil {
			t.Errorf("empty notes should clear, got %q", *e.Notes)
		}
		if e.FinishDate == nil || *e.FinishDate != "2024-06-01" {
			t.Errorf("unexpected finish date %v", e.FinishDate)
		}
	})
}
