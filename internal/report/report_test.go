package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nadmax/tempo/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []history.Entry {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return []history.Entry{
		{TimerID: "c", Name: "Plank", Category: "Workout", CompletedAt: base.Add(2 * time.Hour)},
		{TimerID: "b", Name: "Tea", Category: "Kitchen", CompletedAt: base.Add(time.Hour)},
		{TimerID: "a", Name: "Squats", Category: "Workout", CompletedAt: base},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sampleEntries())

	require.Len(t, rows, 4)
	assert.Equal(t, []string{"timer_id", "name", "category", "completed_at"}, rows[0])
	assert.Equal(t, []string{"c", "Plank", "Workout", "2024-05-01T10:00:00Z"}, rows[1])
}

func TestRows_Empty(t *testing.T) {
	rows := Rows(nil)
	require.Len(t, rows, 1)
}

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleEntries())

	require.Len(t, summary, 2)
	assert.Equal(t, "Workout", summary[0].Category)
	assert.Equal(t, 2, summary[0].Completions)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), summary[0].LastCompletedAt)
	assert.Equal(t, "Kitchen", summary[1].Category)
	assert.Equal(t, 1, summary[1].Completions)
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleEntries()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Tea", records[2][1])
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleEntries()))

	var out struct {
		GeneratedAt string              `json:"generated_at"`
		Summary     []CategorySummary   `json:"summary"`
		Data        []map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.NotEmpty(t, out.GeneratedAt)
	require.Len(t, out.Data, 3)
	assert.Equal(t, "Squats", out.Data[2]["name"])
	assert.Equal(t, "Workout", out.Data[2]["category"])
	require.Len(t, out.Summary, 2)
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, "xml", sampleEntries())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveFile(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveFile(dir, FormatCSV, sampleEntries())
	require.NoError(t, err)
	assert.Contains(t, path, "tempo_history_")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Plank")

	_, err = SaveFile(dir, "pdf", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
	assert.Equal(t, "application/json", ContentType(FormatJSON))
}
