package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func run(command, provider string, finished time.Time, status model.Status) model.RunResult {
	return model.NewRunResult(command, provider, finished.Add(-65*time.Second), finished, 10, 2, 0, status)
}

func allHealthy(finished time.Time) []model.RunResult {
	var out []model.RunResult
	for command, providers := range ExpectedProviders {
		for _, p := range providers {
			out = append(out, run(command, p, finished, model.StatusOK))
		}
	}
	return out
}

func TestWriteAndReadAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	require.NoError(t, Write(dir, run("laws", "ris", now, "")))
	require.NoError(t, Write(dir, run("cases", "rii", now, model.StatusPartial)))
	require.NoError(t, Write(dir, run("cases", "eu", now, "")))
	// rewriting replaces the previous result
	require.NoError(t, Write(dir, run("cases", "eu", now.Add(time.Hour), model.StatusError)))

	data, err := os.ReadFile(filepath.Join(dir, "cases_eu.json"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
	assert.Contains(t, string(data), "\n  \"status\": \"error\"")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	got, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Key{"cases", "eu"}, Key{got[0].Command, got[0].Provider})
	assert.Equal(t, Key{"cases", "rii"}, Key{got[1].Command, got[1].Provider})
	assert.Equal(t, Key{"laws", "ris"}, Key{got[2].Command, got[2].Provider})
	assert.Equal(t, model.StatusError, got[0].Status)
	assert.Equal(t, 65, got[2].DurationSeconds)

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestReadAll_MissingDir(t *testing.T) {
	got, err := ReadAll(filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{42, "42s"},
		{65, "1m 05s"},
		{3600, "60m 00s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds))
	}
}

func TestRows(t *testing.T) {
	results := []model.RunResult{
		run("cases", "rii", now.Add(-200*time.Hour), model.StatusOK),
		run("cases", "custom", now, model.StatusOK),
	}
	rows := Rows(results, DefaultStaleHours, now)

	want := len(Expected()) + 1
	require.Len(t, rows, want)

	byKey := map[Key]Row{}
	for _, r := range rows {
		byKey[r.Key] = r
	}
	assert.True(t, byKey[Key{"cases", "rii"}].Stale)
	assert.False(t, byKey[Key{"cases", "custom"}].Stale)
	never := byKey[Key{"laws", "ris"}]
	assert.Nil(t, never.Result)
	assert.True(t, never.Stale)

	assert.Equal(t, "cases", rows[0].Command)
	assert.Equal(t, "laws", rows[len(rows)-1].Command)
}

func TestStatusTable(t *testing.T) {
	out := StatusTable([]model.RunResult{run("cases", "hb", now, model.StatusPartial)}, DefaultStaleHours, now)

	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "(never)")
	assert.Contains(t, out, "2026-03-02 12:00")
	assert.Contains(t, out, "1m 05s")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "juris-th")
}

func TestHealthy(t *testing.T) {
	assert.True(t, Healthy(allHealthy(now.Add(-time.Hour)), DefaultStaleHours, now))
	assert.False(t, Healthy(nil, DefaultStaleHours, now))
	assert.False(t, Healthy(allHealthy(now.Add(-169*time.Hour)), DefaultStaleHours, now))
	assert.True(t, Healthy(allHealthy(now.Add(-169*time.Hour)), 200, now))

	results := allHealthy(now)
	results[0].Status = model.StatusError
	assert.False(t, Healthy(results, DefaultStaleHours, now))

	results = allHealthy(now)
	results[0].Status = model.StatusPartial
	assert.True(t, Healthy(results, DefaultStaleHours, now))

	assert.False(t, Healthy(allHealthy(now)[1:], DefaultStaleHours, now))
}
