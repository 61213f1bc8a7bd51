// package formatter renders liked tracks, playlists and settings documents for the CLI
// (JSON, YAML, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/settings"
	"github.com/desertthunder/playsync/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts a format name or one of its common aliases (md, txt, yml).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Liked renders a list of liked track ids.
func Liked(format Format, ids []models.TrackID) ([]byte, error) {
	switch format {
	case FormatCSV:
		return LikedToCSV(ids)
	case FormatMarkdown:
		return LikedToMarkdown(ids), nil
	case FormatText:
		return LikedToText(ids), nil
	case FormatYAML:
		return yaml.Marshal(ids)
	default:
		return shared.MarshalJSON(ids, true)
	}
}

// Playlists renders playlists.
func Playlists(format Format, playlists []models.Playlist) ([]byte, error) {
	switch format {
	case FormatCSV:
		return PlaylistsToCSV(playlists)
	case FormatMarkdown:
		return PlaylistsToMarkdown(playlists), nil
	case FormatText:
		return PlaylistsToText(playlists), nil
	case FormatYAML:
		return yaml.Marshal(playlists)
	default:
		return shared.MarshalJSON(playlists, true)
	}
}

// Document renders one settings document. CSV is not supported.
func Document(format Format, doc any) ([]byte, error) {
	switch format {
	case FormatCSV:
		return nil, fmt.Errorf("%w: csv is not available for settings", shared.ErrInvalidArgument)
	case FormatYAML, FormatText:
		return yaml.Marshal(doc)
	case FormatMarkdown:
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, err
		}
		return fenced(data), nil
	default:
		return shared.MarshalJSON(doc, true)
	}
}

// Sections renders the result of a settings fan-out, one entry per section in order.
func Sections(format Format, results []settings.SectionResult) ([]byte, error) {
	switch format {
	case FormatCSV:
		return nil, fmt.Errorf("%w: csv is not available for settings", shared.ErrInvalidArgument)
	case FormatMarkdown:
		return SectionsToMarkdown(results)
	case FormatText:
		return SectionsToText(results)
	}

	type entry struct {
		Section models.Section `json:"section" yaml:"section"`
		Data    any            `json:"data,omitempty" yaml:"data,omitempty"`
		Error   string         `json:"error,omitempty" yaml:"error,omitempty"`
		Status  int            `json:"status,omitempty" yaml:"status,omitempty"`
	}
	entries := make([]entry, 0, len(results))
	for _, r := range results {
		e := entry{Section: r.Section}
		if doc, err := r.Document(); err != nil {
			e.Error = err.Error()
			if f, ok := r.Failure(); ok {
				e.Status = f.Status
			}
		} else {
			e.Data = doc
		}
		entries = append(entries, e)
	}

	if format == FormatYAML {
		return yaml.Marshal(entries)
	}
	return shared.MarshalJSON(entries, true)
}

// LikedToCSV writes a single "Track ID" column.
func LikedToCSV(ids []models.TrackID) ([]byte, error) {
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, []string{id.String()})
	}
	return writeCSV([]string{"Track ID"}, rows)
}

func LikedToMarkdown(ids []models.TrackID) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", models.LikedSongsPlaylist)
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(ids))
	for i, id := range ids {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, id)
	}
	return buf.Bytes()
}

func LikedToText(ids []models.TrackID) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s: %d\n", models.LikedSongsPlaylist, len(ids))
	for _, id := range ids {
		fmt.Fprintf(&buf, "%s\n", id)
	}
	return buf.Bytes()
}

// PlaylistsToCSV converts playlists to CSV with columns: ID, Name, Tracks, Track IDs (semicolon separated)
func PlaylistsToCSV(playlists []models.Playlist) ([]byte, error) {
	rows := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		ids := make([]string, 0, len(p.TrackIDs))
		for _, id := range p.TrackIDs {
			ids = append(ids, id.String())
		}
		rows = append(rows, []string{p.ID.String(), p.Name, strconv.Itoa(p.TrackCount()), strings.Join(ids, ";")})
	}
	return writeCSV([]string{"ID", "Name", "Tracks", "Track IDs"}, rows)
}

func PlaylistsToMarkdown(playlists []models.Playlist) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Playlists\n\n")
	fmt.Fprintf(&buf, "**Playlists**: %d\n", len(playlists))

	for _, p := range playlists {
		fmt.Fprintf(&buf, "\n## %s\n\n", p.Name)
		fmt.Fprintf(&buf, "**ID**: %s\n", p.ID)
		fmt.Fprintf(&buf, "**Tracks**: %d\n", p.TrackCount())
		if p.TrackCount() > 0 {
			buf.WriteString("\n")
		}
		for i, id := range p.TrackIDs {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, id)
		}
	}
	return buf.Bytes()
}

func PlaylistsToText(playlists []models.Playlist) []byte {
	var buf bytes.Buffer
	for _, p := range playlists {
		fmt.Fprintf(&buf, "%s (%s): %d tracks\n", p.Name, p.ID, p.TrackCount())
	}
	return buf.Bytes()
}

// SectionsToMarkdown writes one heading per section with its document as a YAML block,
// or the failure when the section could not be fetched.
func SectionsToMarkdown(results []settings.SectionResult) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# Settings\n")

	for _, r := range results {
		fmt.Fprintf(&buf, "\n## %s\n\n", r.Section)
		doc, err := r.Document()
		if err != nil {
			fmt.Fprintf(&buf, "**Error**: %s\n", err)
			continue
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", r.Section, err)
		}
		buf.Write(fenced(data))
	}
	return buf.Bytes(), nil
}

func SectionsToText(results []settings.SectionResult) ([]byte, error) {
	var buf bytes.Buffer
	for i, r := range results {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "[%s]\n", r.Section)
		doc, err := r.Document()
		if err != nil {
			fmt.Fprintf(&buf, "error: %s\n", err)
			continue
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", r.Section, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

func fenced(data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("```yaml\n")
	buf.Write(data)
	buf.WriteString("```\n")
	return buf.Bytes()
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

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes a JSON or YAML file into v. YAML is a superset of JSON, so one decoder handles both.
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, path, err)
	}
	return nil
}

// ReadDocument reads a full settings document.
func ReadDocument(path string) (models.UserSettings, error) {
	var doc models.UserSettings
	err := ReadFile(path, &doc)
	return doc, err
}
