package model

import "time"

// Status is the overall outcome of one run
type Status string

const (
	StatusOK      Status = "ok"      // No errors
	StatusPartial Status = "partial" // Some records failed, the rest were delivered
	StatusError   Status = "error"   // The run failed before producing output
)

// RunResult summarizes one invocation of one command against one provider.
// It is written to <command>_<provider>.json in the results directory.
type RunResult struct {
	Provider        string    `json:"provider"`
	Command         string    `json:"command"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Status          Status    `json:"status"`
	Created         int       `json:"created"`
	Skipped         int       `json:"skipped"`
	Errors          int       `json:"errors"`
}

// NewRunResult builds a result and derives the duration from the timestamps
func NewRunResult(command, provider string, started, finished time.Time, created, skipped, errors int, status Status) RunResult {
	if status == "" {
		status = StatusOK
		if errors > 0 {
			status = StatusPartial
		}
	}
	return RunResult{
		Provider:        provider,
		Command:         command,
		StartedAt:       started,
		FinishedAt:      finished,
		DurationSeconds: int(finished.Sub(started).Seconds()),
		Status:          status,
		Created:         created,
		Skipped:         skipped,
		Errors:          errors,
	}
}

// ExitCode maps the result to a process exit status
func (r RunResult) ExitCode() int {
	if r.Status == StatusError {
		return 2
	}
	if r.Errors > 0 {
		return 1
	}
	return 0
}
