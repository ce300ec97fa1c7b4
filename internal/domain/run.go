package domain

import "time"

// runDirLayout is the timestamp layout of run directory names
const runDirLayout = "2006-01-02_15-04-05"

// RunDirName returns the run directory identifier for project at t
func RunDirName(project string, t time.Time) string {
	return project + "_" + t.Format(runDirLayout)
}

// Run records one orchestration
type Run struct {
	ID         string
	RunDir     string
	Project    string
	Kind       Kind
	Seed       int64
	DryRun     bool
	// Verdict is REGRESSION_PASS or REGRESSION_FAIL once plan and report ran
	Verdict    Status
	Status     Status
	ExitCode   int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Steps      []StepResult
}

// Duration returns how long the run took, or zero while it is unfinished
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StepResult is the outcome of one external invocation
type StepResult struct {
	Step      Step
	ExitCode  int
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}
