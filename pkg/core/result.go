package core

import "time"

// RunStatus is the terminal status of one model's execution.
type RunStatus string

const (
	// StatusSuccess means the model materialized and passed all checks.
	StatusSuccess RunStatus = "success"
	// StatusError means some stage of the model's execution failed.
	StatusError RunStatus = "error"
	// StatusSkipped means the model was never dispatched, typically because
	// an upstream WAP publish failed.
	StatusSkipped RunStatus = "skipped"
)

// ModelRunResult records the outcome of a single model within a run.
// Results are accumulated into a run-scoped set and read once at run end.
type ModelRunResult struct {
	// Model is the model name.
	Model string
	// Status is the terminal status.
	Status RunStatus
	// Materialization labels the path that executed.
	Materialization Materialization
	// Duration is the wall time from pre-hooks to terminal status.
	Duration time.Duration
	// Err holds the failure or skip reason, empty on success.
	Err string
	// RowCount is a best-effort post-run row count; -1 when unavailable.
	RowCount int64
}

// RunSummary aggregates the results of a whole run.
type RunSummary struct {
	Results      []ModelRunResult
	SuccessCount int
	FailureCount int
	// StoppedEarly reports that fail-fast halted dispatch before every
	// model was attempted.
	StoppedEarly bool
}

// SkipCount returns the number of skipped models.
func (s *RunSummary) SkipCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == StatusSkipped {
			n++
		}
	}
	return n
}
