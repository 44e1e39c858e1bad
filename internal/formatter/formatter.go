// package formatter renders playlist listings, download history and search results as text, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/musix/internal/models"
	"github.com/desertthunder/musix/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// Formats lists every supported format, for flag help.
var Formats = []Format{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// ParseFormat accepts a format name or a common alias ("md", "txt").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Ext returns the file extension for f, with the leading dot.
func (f Format) Ext() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// Listing is the on-disk contents of one playlist.
type Listing struct {
	Location models.PlaylistLocation `json:"location"`
	Tracks   []models.DownloadedTrack `json:"tracks"`
}

// FormatListing renders l in format f.
func FormatListing(l Listing, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ListingToCSV(l)
	case FormatMarkdown:
		return ListingToMarkdown(l), nil
	case FormatJSON:
		return shared.MarshalJSON(l, true)
	default:
		return ListingToText(l), nil
	}
}

// ListingToCSV converts a listing to CSV with columns: ID, Title, Filename, URL
func ListingToCSV(l Listing) ([]byte, error) {
	rows := make([][]string, 0, len(l.Tracks))
	for _, t := range l.Tracks {
		rows = append(rows, []string{t.ID, t.Title, t.Filename, t.FileURL})
	}
	return writeCSV([]string{"ID", "Title", "Filename", "URL"}, rows)
}

// ListingToMarkdown renders a listing as a heading and a numbered list of links.
func ListingToMarkdown(l Listing) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", l.Location.Playlist)
	fmt.Fprintf(&buf, "**Profile**: %s\n", l.Location.ProfileID)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(l.Tracks))

	if len(l.Tracks) == 0 {
		return buf.Bytes()
	}

	buf.WriteString("## Tracks\n\n")
	for i, t := range l.Tracks {
		fmt.Fprintf(&buf, "%d. [%s](%s) `%s`\n", i+1, escapeMarkdown(t.Title), t.FileURL, t.ID)
	}
	return buf.Bytes()
}

// ListingToText renders a listing as plain text.
func ListingToText(l Listing) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", l.Location)
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(l.Tracks))
	for i, t := range l.Tracks {
		fmt.Fprintf(&buf, "%d. %s [%s]\n", i+1, t.Title, t.ID)
	}
	return buf.Bytes()
}

// FormatHistory renders download records in format f.
func FormatHistory(records []models.DownloadRecordView, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return HistoryToCSV(records)
	case FormatMarkdown:
		return HistoryToMarkdown(records), nil
	case FormatJSON:
		if records == nil {
			records = []models.DownloadRecordView{}
		}
		return shared.MarshalJSON(records, true)
	default:
		return HistoryToText(records), nil
	}
}

// HistoryToCSV converts records to CSV with columns: Time, Profile, Playlist, Video ID, Title, Outcome, Error
func HistoryToCSV(records []models.DownloadRecordView) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.ProfileID,
			r.Playlist,
			r.VideoID,
			r.Title,
			string(r.Outcome),
			r.Error,
		})
	}
	return writeCSV([]string{"Time", "Profile", "Playlist", "Video ID", "Title", "Outcome", "Error"}, rows)
}

// HistoryToMarkdown renders records as a table.
func HistoryToMarkdown(records []models.DownloadRecordView) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Download History\n\n")
	if len(records) == 0 {
		buf.WriteString("No downloads recorded.\n")
		return buf.Bytes()
	}

	buf.WriteString("| Time | Location | Title | Outcome |\n")
	buf.WriteString("|------|----------|-------|---------|\n")
	for _, r := range records {
		outcome := string(r.Outcome)
		if r.Error != "" {
			outcome += ": " + r.Error
		}
		fmt.Fprintf(&buf, "| %s | %s/%s | %s | %s |\n",
			r.CreatedAt.Local().Format(time.DateTime),
			escapeCell(r.ProfileID), escapeCell(r.Playlist),
			escapeCell(r.Title), escapeCell(outcome))
	}
	return buf.Bytes()
}

// HistoryToText renders records one per line, newest first as given.
func HistoryToText(records []models.DownloadRecordView) []byte {
	var buf bytes.Buffer
	if len(records) == 0 {
		buf.WriteString("No downloads recorded.\n")
		return buf.Bytes()
	}

	for _, r := range records {
		mark := "✓"
		if r.Outcome == models.OutcomeFailed {
			mark = "✗"
		}
		fmt.Fprintf(&buf, "%s %s  %s/%s  %s [%s]",
			mark, r.CreatedAt.Local().Format(time.DateTime), r.ProfileID, r.Playlist, r.Title, r.VideoID)
		if r.Error != "" {
			fmt.Fprintf(&buf, "  (%s)", r.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// FormatSearch renders search results in format f.
func FormatSearch(results []models.SearchResult, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{r.ID, r.Title, r.Channel, FormatDuration(r.Duration), r.URL})
		}
		return writeCSV([]string{"ID", "Title", "Channel", "Duration", "URL"}, rows)
	case FormatJSON:
		if results == nil {
			results = []models.SearchResult{}
		}
		return shared.MarshalJSON(results, true)
	case FormatMarkdown:
		var buf bytes.Buffer
		for i, r := range results {
			fmt.Fprintf(&buf, "%d. [%s](%s) `%s`", i+1, escapeMarkdown(r.Title), r.URL, r.ID)
			if r.Duration > 0 {
				fmt.Fprintf(&buf, " [%s]", FormatDuration(r.Duration))
			}
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		for i, r := range results {
			fmt.Fprintf(&buf, "%2d. %s  %s", i+1, r.ID, r.Title)
			if r.Channel != "" {
				fmt.Fprintf(&buf, " (%s)", r.Channel)
			}
			if r.Duration > 0 {
				fmt.Fprintf(&buf, " [%s]", FormatDuration(r.Duration))
			}
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
}

// FormatDuration renders seconds as m:ss, or h:mm:ss for an hour or more.
func FormatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// WriteExport writes data to path, creating parent directories. An empty path writes
// <name><ext> in the working directory.
func WriteExport(data []byte, path, name string, f Format) (string, error) {
	if path == "" {
		path = shared.Sanitize(name) + f.Ext()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

var markdownEscaper = strings.NewReplacer("[", `\[`, "]", `\]`)

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

func escapeCell(s string) string { return strings.ReplaceAll(s, "|", `\|`) }
