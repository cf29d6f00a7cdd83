package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/services"
)

const maxTitleWidth = 48

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	Header lipgloss.Style
	Cell   lipgloss.Style
	Border lipgloss.Style
	Muted  lipgloss.Style
}

// DefaultPalette is used by the Render functions.
var DefaultPalette = NewPalette("#7D56F4", "#626262")

func NewPalette(accent, muted string) *Palette {
	return &Palette{
		Header: NewBold(accent).Align(lipgloss.Center),
		Cell:   lipgloss.NewStyle().Padding(0, 1),
		Border: NewStyle(accent),
		Muted:  NewEm(muted),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) table(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.Header
			}
			return p.Cell
		}).
		Headers(headers...)
}

// RenderAnimeTable writes catalog results as a table.
func RenderAnimeTable(w io.Writer, anime []services.Anime) error {
	if len(anime) == 0 {
		_, err := fmt.Fprintln(w, DefaultPalette.Muted.Render("No results found."))
		return err
	}

	t := DefaultPalette.table("ID", "Title", "Type", "Episodes", "Score", "Year")
	for _, a := range anime {
		year := ""
		if a.Year != nil {
			year = strconv.Itoa(*a.Year)
		}
		t.Row(
			strconv.Itoa(a.MalID),
			truncate(a.DisplayTitle(), maxTitleWidth),
			a.Type,
			optInt(a.Episodes),
			optScore(a.Score),
			year,
		)
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

// RenderGenreTable writes genres with their anime counts.
func RenderGenreTable(w io.Writer, genres []services.Resource) error {
	t := DefaultPalette.table("ID", "Genre", "Anime")
	for _, g := range genres {
		t.Row(strconv.Itoa(g.MalID), g.Name, strconv.Itoa(g.Count))
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

// RenderRecommendationTable writes recommended anime ordered as given.
func RenderRecommendationTable(w io.Writer, recs []services.Recommendation) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, DefaultPalette.Muted.Render("No recommendations."))
		return err
	}

	t := DefaultPalette.table("ID", "Title", "Votes")
	for _, r := range recs {
		t.Row(strconv.Itoa(r.Entry.MalID), truncate(r.Entry.Title, maxTitleWidth), strconv.Itoa(r.Votes))
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

// RenderReviewTable writes reviews without their bodies.
func RenderReviewTable(w io.Writer, reviews []*models.Review) error {
	if len(reviews) == 0 {
		_, err := fmt.Fprintln(w, DefaultPalette.Muted.Render("No reviews."))
		return err
	}

	t := DefaultPalette.table("ID", "Anime", "Author", "Score", "Title", "Spoilers")
	for _, r := range reviews {
		author := r.UserID
		if r.Author != nil {
			author = r.Author.Username
		}
		spoilers := ""
		if r.ContainsSpoilers {
			spoilers = "yes"
		}
		t.Row(r.ID, strconv.Itoa(r.AnimeID), author, strconv.Itoa(r.Score), truncate(r.Title, maxTitleWidth), spoilers)
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

// RenderListTable writes watch-list entries.
func RenderListTable(w io.Writer, entries []*models.ListEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, DefaultPalette.Muted.Render("The list is empty."))
		return err
	}

	t := DefaultPalette.table("ID", "Title", "Status", "Progress", "Score")
	for _, e := range entries {
		t.Row(
			strconv.Itoa(e.AnimeID),
			truncate(e.Title(), maxTitleWidth),
			e.Status.Label(),
			fmt.Sprintf("%d/%s", e.EpisodesWatched, totalEpisodes(e)),
			optInt(e.Score),
		)
	}
	_, err := fmt.Fprintln(w, t)
	return err
}

func optScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
