package demo

import (
	"fmt"
	"time"

	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

// TargetSummary is the per-target result of a demo run.
type TargetSummary struct {
	Target string `json:"target"`
	// Skipped is set when the connectivity check failed; Err holds the cause.
	Skipped     bool  `json:"skipped"`
	Interrupted bool  `json:"interrupted"`
	Err         error `json:"-"`

	StatementsExecuted uint64 `json:"statements_executed"`
	ErrorsInjected     uint64 `json:"errors_injected"`
	ScenariosRun       int    `json:"scenarios_run"`
	ScenariosFailed    int    `json:"scenarios_failed"`
	Rounds             int    `json:"rounds"`

	Generator  traffic.Stats `json:"generator"`
	CleanupErr error         `json:"-"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Duration is the wall time spent on the target.
func (s TargetSummary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// CleanupError reports a cleanup script that did not run cleanly. It is
// never fatal.
type CleanupError struct {
	Target string
	Failed int
	Err    error
}

func (e *CleanupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cleanup on %s failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("cleanup on %s: %d statement(s) failed", e.Target, e.Failed)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
