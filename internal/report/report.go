// Package report renders the completion history as CSV or JSON, for download
// over HTTP or for writing to a file from the CLI.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nadmax/tempo/internal/history"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

var header = []string{"timer_id", "name", "category", "completed_at"}

type CategorySummary struct {
	Category        string    `json:"category"`
	Completions     int       `json:"completions"`
	LastCompletedAt time.Time `json:"last_completed_at"`
}

func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Rows returns the history as a table, header first.
func Rows(entries []history.Entry) [][]string {
	data := make([][]string, 0, len(entries)+1)
	data = append(data, header)

	for _, e := range entries {
		data = append(data, []string{
			e.TimerID,
			e.Name,
			e.Category,
			e.CompletedAt.UTC().Format(time.RFC3339),
		})
	}

	return data
}

// Summarize counts completions per category, busiest category first.
func Summarize(entries []history.Entry) []CategorySummary {
	byCategory := make(map[string]*CategorySummary)
	for _, e := range entries {
		s, ok := byCategory[e.Category]
		if !ok {
			s = &CategorySummary{Category: e.Category}
			byCategory[e.Category] = s
		}
		s.Completions++
		if e.CompletedAt.After(s.LastCompletedAt) {
			s.LastCompletedAt = e.CompletedAt
		}
	}

	out := make([]CategorySummary, 0, len(byCategory))
	for _, s := range byCategory {
		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Completions != out[j].Completions {
			return out[i].Completions > out[j].Completions
		}
		return out[i].Category < out[j].Category
	})

	return out
}

func Write(w io.Writer, format string, entries []history.Entry) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, Rows(entries))
	case FormatJSON:
		return writeJSON(w, entries)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, data [][]string) error {
	writer := csv.NewWriter(w)
	return writer.WriteAll(data)
}

func writeJSON(w io.Writer, entries []history.Entry) error {
	data := Rows(entries)
	headers := data[0]

	records := make([]map[string]string, 0, len(data)-1)
	for _, row := range data[1:] {
		record := make(map[string]string, len(headers))
		for i, h := range headers {
			record[h] = row[i]
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"summary":      Summarize(entries),
		"data":         records,
	})
}

// SaveFile writes the report into dir and returns the file path.
func SaveFile(dir, format string, entries []history.Entry) (string, error) {
	if format != FormatCSV && format != FormatJSON {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("tempo_history_%s.%s", timestamp, format))

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close report file", "path", path, "error", err)
		}
	}()

	if err := Write(file, format, entries); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}
