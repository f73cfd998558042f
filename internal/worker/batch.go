package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// JobSpec describes one ingestion run read from a batch file
type JobSpec struct {
	Command  string            // "laws" or "cases"
	Provider string            // Registry key, e.g. "ris" or "juris-bb"
	Params   map[string]string // Optional key=value parameters
}

// String renders the spec the way it appears in a batch file
func (s JobSpec) String() string {
	var b strings.Builder
	b.WriteString(s.Command)
	b.WriteString(" ")
	b.WriteString(s.Provider)
	for _, key := range sortedKeys(s.Params) {
		fmt.Fprintf(&b, " %s=%s", key, s.Params[key])
	}
	return b.String()
}

// Runner executes one ingestion run
type Runner interface {
	Run(ctx context.Context, spec JobSpec) (model.RunResult, error)
}

// RunOutcome is the result of one batch job. Error is set when the job
// could not start, e.g. for an unknown provider.
type RunOutcome struct {
	Spec   JobSpec
	Result model.RunResult
	Error  error
}

// BatchProcessor runs several independent provider runs
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// Process runs every spec and returns one outcome per spec
func (b *BatchProcessor) Process(ctx context.Context, specs []JobSpec) []*RunOutcome {
	if len(specs) == 0 {
		return []*RunOutcome{}
	}

	pool := NewPool[*RunOutcome](ctx, b.concurrency)
	pool.Start()

	go func() {
		for _, spec := range specs {
			pool.Submit(func(ctx context.Context) *RunOutcome {
				res, err := b.runner.Run(ctx, spec)
				return &RunOutcome{Spec: spec, Result: res, Error: err}
			})
		}
	}()

	return pool.Collect(len(specs))
}

// ReadJobsFromFile parses a batch file. Each non-empty, non-comment line is
// "<command> <provider> [key=value ...]". Duplicate lines are skipped.
func ReadJobsFromFile(filePath string) ([]JobSpec, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var specs []JobSpec
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		spec, err := ParseJobLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		key := spec.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		specs = append(specs, spec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return specs, nil
}

// ParseJobLine parses a single batch file line
func ParseJobLine(line string) (JobSpec, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return JobSpec{}, fmt.Errorf("expected \"<command> <provider>\", got %q", line)
	}

	spec := JobSpec{
		Command:  fields[0],
		Provider: fields[1],
		Params:   make(map[string]string),
	}

	if spec.Command != "laws" && spec.Command != "cases" {
		return JobSpec{}, fmt.Errorf("unknown command %q", spec.Command)
	}

	for _, field := range fields[2:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return JobSpec{}, fmt.Errorf("invalid parameter %q, expected key=value", field)
		}
		spec.Params[key] = value
	}

	return spec, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
