// Package results stores one summary file per (command, provider) run and
// renders the status dashboard from them.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// DefaultStaleHours marks results older than a week as stale
const DefaultStaleHours = 168

// Key identifies one monitored run
type Key struct {
	Command  string
	Provider string
}

// ExpectedProviders lists every production source by command. The dummy
// providers are not monitored.
var ExpectedProviders = map[string][]string{
	"cases": {
		"ris", "rii", "by", "nrw", "ns", "eu", "hb", "sn-ovg", "sn", "sn-verfgh",
		"juris-bb", "juris-hh", "juris-mv", "juris-rlp", "juris-sa",
		"juris-sh", "juris-bw", "juris-sl", "juris-he", "juris-th",
	},
	"laws": {"ris"},
}

// Expected returns every monitored (command, provider) pair
func Expected() map[Key]bool {
	keys := make(map[Key]bool)
	for command, providers := range ExpectedProviders {
		for _, p := range providers {
			keys[Key{Command: command, Provider: p}] = true
		}
	}
	return keys
}

// FileName is the result file of one run
func FileName(command, provider string) string {
	return command + "_" + provider + ".json"
}

// Write stores res in dir, replacing any previous result of the same
// command and provider. The file is written to a temp file and renamed.
func Write(dir string, res model.RunResult) (err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create results directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "result-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close result: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, FileName(res.Command, res.Provider))); err != nil {
		return fmt.Errorf("rename result: %w", err)
	}
	return nil
}

// ReadAll loads every result file in dir sorted by command and provider.
// A missing directory yields no results; unreadable files are ignored.
func ReadAll(dir string) ([]model.RunResult, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results directory: %w", err)
	}

	var out []model.RunResult
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var res model.RunResult
		if err := json.Unmarshal(data, &res); err != nil {
			continue
		}
		out = append(out, res)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Command != out[j].Command {
			return out[i].Command < out[j].Command
		}
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

// FormatDuration renders seconds as "1m 05s" or "42s"
func FormatDuration(seconds int) string {
	if m := seconds / 60; m > 0 {
		return fmt.Sprintf("%dm %02ds", m, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

// Row is one line of the status dashboard
type Row struct {
	Key
	Result *model.RunResult // nil when never run
	Stale  bool
}

func isStale(res model.RunResult, staleHours int, now time.Time) bool {
	if res.FinishedAt.IsZero() {
		return false
	}
	return now.Sub(res.FinishedAt) > time.Duration(staleHours)*time.Hour
}

// Rows joins results with the expected pairs. Runs never seen are stale.
func Rows(results []model.RunResult, staleHours int, now time.Time) []Row {
	byKey := make(map[Key]model.RunResult, len(results))
	for _, r := range results {
		byKey[Key{Command: r.Command, Provider: r.Provider}] = r
	}

	all := Expected()
	for k := range byKey {
		all[k] = true
	}
	keys := make([]Key, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Command != keys[j].Command {
			return keys[i].Command < keys[j].Command
		}
		return keys[i].Provider < keys[j].Provider
	})

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		r, ok := byKey[k]
		if !ok {
			rows = append(rows, Row{Key: k, Stale: true})
			continue
		}
		rows = append(rows, Row{Key: k, Result: &r, Stale: isStale(r, staleHours, now)})
	}
	return rows
}

// StatusTable renders the dashboard of every expected and recorded run
func StatusTable(results []model.RunResult, staleHours int, now time.Time) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Provider", "Command", "Last Run", "Duration", "Status", "Created", "Skipped", "Errors", "Stale"})

	for _, row := range Rows(results, staleHours, now) {
		stale := ""
		if row.Stale {
			stale = "YES"
		}
		if row.Result == nil {
			t.AppendRow(table.Row{row.Provider, row.Command, "(never)", "", "", "", "", "", stale})
			continue
		}

		r := row.Result
		lastRun := ""
		if !r.FinishedAt.IsZero() {
			lastRun = r.FinishedAt.UTC().Format("2006-01-02 15:04")
		}
		t.AppendRow(table.Row{
			row.Provider, row.Command, lastRun, FormatDuration(r.DurationSeconds), string(r.Status),
			strconv.Itoa(r.Created), strconv.Itoa(r.Skipped), strconv.Itoa(r.Errors), stale,
		})
	}

	t.SetStyle(table.StyleLight)
	return t.Render()
}

// Healthy reports whether every expected run exists, did not fail and
// finished within staleHours.
func Healthy(results []model.RunResult, staleHours int, now time.Time) bool {
	byKey := make(map[Key]model.RunResult, len(results))
	for _, r := range results {
		byKey[Key{Command: r.Command, Provider: r.Provider}] = r
	}
	for k := range Expected() {
		r, ok := byKey[k]
		if !ok || r.Status == model.StatusError || isStale(r, staleHours, now) {
			return false
		}
	}
	return true
}
