package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchSnapshots Phase = iota
	FetchAnime
	WarmTop
	WarmSeasonal
	WarmGenres
)

func (p Phase) String() string {
	switch p {
	case FetchSnapshots:
		return "fetch_snapshots"
	case FetchAnime:
		return "fetch_anime"
	case WarmTop:
		return "warm_top"
	case WarmSeasonal:
		return "warm_seasonal"
	case WarmGenres:
		return "warm_genres"
	default:
		return ""
	}
}

func lookupSnapshotsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSnapshots,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Looking up %d cached snapshots...", total),
	}
}

func snapshotsFoundUpdate(fresh, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSnapshots,
		Step:    fresh,
		Total:   total,
		Message: fmt.Sprintf("%d of %d anime served from snapshots", fresh, total),
	}
}

func fetchedAnimeUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAnime,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetched: %s", title),
	}
}

func fetchAnimeFailedUpdate(step, total, animeID int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAnime,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed to fetch anime %d: %v", animeID, err),
		Data:    err,
	}
}

func warmTopUpdate(step, total int, filter string) ProgressUpdate {
	if filter == "" {
		filter = "all"
	}
	return ProgressUpdate{
		Phase:   WarmTop,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Warming top anime (%s)...", filter),
	}
}

func warmSeasonalUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmSeasonal,
		Step:    step,
		Total:   total,
		Message: "Warming current season...",
	}
}

func warmGenresUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WarmGenres,
		Step:    step,
		Total:   total,
		Message: "Warming genre list...",
	}
}
