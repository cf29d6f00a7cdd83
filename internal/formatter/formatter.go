// package formatter exports watch-lists to files (CSV, Markdown, plain text, JSON) and renders terminal tables
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/anilistx/internal/models"
	"github.com/desertthunder/anilistx/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// ParseFormat accepts csv, md (or markdown), txt (or text) and json.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: export format %q (want csv, md, txt or json)", shared.ErrInvalidArgument, s)
}

var csvHeaders = []string{
	"Anime ID", "Title", "Type", "Status", "Score", "Episodes Watched", "Total Episodes",
	"Start Date", "Finish Date", "Rewatching", "Times Rewatched", "Notes",
}

// ExportToCSV writes one row per entry with the columns in csvHeaders.
func ExportToCSV(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range export.Entries {
		record := []string{
			strconv.Itoa(e.AnimeID),
			e.Title(),
			animeType(e),
			string(e.Status),
			optInt(e.Score),
			strconv.Itoa(e.EpisodesWatched),
			totalEpisodes(e),
			optString(e.StartDate),
			optString(e.FinishDate),
			strconv.FormatBool(e.IsRewatching),
			strconv.Itoa(e.TimesRewatched),
			optString(e.Notes),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown groups entries by status under a stats summary, with an optional avatar image
func ExportToMarkdown(export *models.ListExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s's Anime List\n\n", export.Owner)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Avatar](%s)\n\n", imageFilename)
	}

	if s := export.Stats; s != nil {
		fmt.Fprintf(&buf, "**Anime**: %d\n", s.TotalAnime)
		fmt.Fprintf(&buf, "**Episodes Watched**: %d\n", s.TotalEpisodes)
		if s.HighestScore > 0 {
			fmt.Fprintf(&buf, "**Average Score**: %.2f\n", s.AverageScore)
		}
		buf.WriteString("\n")
	}

	for _, status := range models.Statuses {
		group := entriesWithStatus(export.Entries, status)
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(&buf, "## %s (%d)\n\n", status.Label(), len(group))
		for i, e := range group {
			fmt.Fprintf(&buf, "%d. %s [%s/%s eps]", i+1, e.Title(), strconv.Itoa(e.EpisodesWatched), totalEpisodes(e))
			if e.Score != nil && *e.Score > 0 {
				fmt.Fprintf(&buf, " - %d/10", *e.Score)
			}
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a watch-list to plain text format
func ExportToText(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Anime list: %s\n", export.Owner)
	fmt.Fprintf(&buf, "Entries: %d\n\n", len(export.Entries))

	for i, e := range export.Entries {
		fmt.Fprintf(&buf, "%d. %s (%s)\n", i+1, e.Title(), e.Status.Label())
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes the whole export, entries included.
func ExportToJSON(export *models.ListExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// ToMetadataJSON generates a JSON representation of the export's owner and stats (without entries)
func ToMetadataJSON(export *models.ListExport) ([]byte, error) {
	return shared.MarshalJSON(struct {
		Owner      string            `json:"owner"`
		Stats      *models.ListStats `json:"stats"`
		Entries    int               `json:"entries"`
		ExportedAt time.Time         `json:"exported_at"`
	}{export.Owner, export.Stats, len(export.Entries), export.ExportedAt}, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// WriteListExport writes export in the given format and returns the created files.
//
// output is a base path for csv ({output}_list.csv and {output}_metadata.json), a directory for md,
// and a file path for txt and json. It defaults to a name derived from the owner.
func WriteListExport(ctx context.Context, export *models.ListExport, format Format, output string) ([]string, error) {
	switch format {
	case FormatCSV:
		res, err := WriteCSVExport(export, output)
		if err != nil {
			return nil, err
		}
		return []string{res.ListFile, res.MetadataFile}, nil
	case FormatMarkdown:
		imageURL := ""
		if export.AvatarURL != nil {
			imageURL = *export.AvatarURL
		}
		res, err := WriteMarkdownExport(ctx, export, output, imageURL)
		if err != nil {
			return nil, err
		}
		return res.Files, nil
	case FormatText:
		path, err := WriteTextExport(export, output)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	case FormatJSON:
		path, err := WriteJSONExport(export, output)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, fmt.Errorf("%w: export format %q", shared.ErrInvalidArgument, format)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ListFile     string
	MetadataFile string
}

// WriteCSVExport exports a watch-list to CSV format with accompanying metadata JSON file.
//
// Defaults to the owner as the base filename & creates {base}_list.csv and {base}_metadata.json
func WriteCSVExport(export *models.ListExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Owner
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	listFile := baseFilepath + "_list.csv"
	if err := os.WriteFile(listFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		ListFile:     listFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Avatar    string
}

// WriteMarkdownExport exports a watch-list to Markdown format in a dedicated directory.
//
// Directory name defaults to the owner.
// The imageURL parameter is optional - if provided, attempts to download the avatar image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/avatar.jpg
func WriteMarkdownExport(ctx context.Context, export *models.ListExport, outputDir string, imageURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Owner
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var avatarFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(ctx, imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download avatar: %v\n", err)
		} else {
			avatarFilename = "avatar.jpg"
			avatarPath := filepath.Join(outputDir, avatarFilename)
			if err := os.WriteFile(avatarPath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save avatar: %v\n", err)
				avatarFilename = ""
			} else {
				result.Avatar = avatarPath
				result.Files = append(result.Files, avatarPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, avatarFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a watch-list to plain text format.
//
// Defaults to {owner}_list.txt as the filename.
func WriteTextExport(export *models.ListExport, path string) (string, error) {
	if path == "" {
		path = export.Owner + "_list.txt"
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport exports a watch-list as JSON. Defaults to {owner}_list.json.
func WriteJSONExport(export *models.ListExport, path string) (string, error) {
	if path == "" {
		path = export.Owner + "_list.json"
	}

	data, err := ExportToJSON(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return path, nil
}

func entriesWithStatus(entries []*models.ListEntry, status models.ListStatus) []*models.ListEntry {
	var out []*models.ListEntry
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func animeType(e *models.ListEntry) string {
	if e.Anime != nil && e.Anime.Type != nil {
		return *e.Anime.Type
	}
	return ""
}

func totalEpisodes(e *models.ListEntry) string {
	if e.Anime != nil && e.Anime.Episodes != nil {
		return strconv.Itoa(*e.Anime.Episodes)
	}
	return "?"
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
