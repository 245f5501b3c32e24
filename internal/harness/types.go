package harness

import (
	"time"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/supervisor"
)

// Phase is the runner's position in a suite.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseScored
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseScored:
		return "scored"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// RunSummary is the part of a RunResult worth reporting.
type RunSummary struct {
	RunID    string        `json:"run_id"`
	Variant  string        `json:"variant,omitempty"`
	Args     []string      `json:"args"`
	ExitCode *int          `json:"exit_code,omitempty"`
	Signal   string        `json:"signal,omitempty"`
	TimedOut bool          `json:"timed_out"`
	Lines    int           `json:"lines"`
	Events   int           `json:"events"`
	Duration time.Duration `json:"duration"`
	Failure  string        `json:"failure,omitempty"`
}

func summarize(variant string, run *supervisor.RunResult) RunSummary {
	s := RunSummary{
		RunID:    run.RunID,
		Variant:  variant,
		Args:     run.Args,
		ExitCode: run.ExitCode,
		Signal:   run.Signal,
		TimedOut: run.TimedOut,
		Lines:    len(run.Lines),
		Events:   len(run.Events),
		Duration: run.Duration,
	}
	if run.Failure != nil {
		s.Failure = run.Failure.Error()
	}
	return s
}

// ScenarioResult is the scored outcome of one scenario.
type ScenarioResult struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Passed      bool                   `json:"passed"`
	Checks      []analysis.CheckResult `json:"checks"`
	Runs        []RunSummary           `json:"runs"`
}

// ScoreBoard accumulates pass/fail counters across a suite.
type ScoreBoard struct {
	Scenarios     int `json:"scenarios"`
	Passed        int `json:"passed"`
	Failed        int `json:"failed"`
	ChecksPassed  int `json:"checks_passed"`
	ChecksFailed  int `json:"checks_failed"`
	ChecksSkipped int `json:"checks_skipped"`
}

// Record adds a scored scenario to the board.
func (b *ScoreBoard) Record(r ScenarioResult) {
	b.Scenarios++
	if r.Passed {
		b.Passed++
	} else {
		b.Failed++
	}
	for _, c := range r.Checks {
		switch {
		case c.Skipped:
			b.ChecksSkipped++
		case c.Passed:
			b.ChecksPassed++
		default:
			b.ChecksFailed++
		}
	}
}

// AllPassed reports whether every recorded scenario passed.
func (b ScoreBoard) AllPassed() bool {
	return b.Failed == 0
}

// Report is the terminal state of a suite run.
type Report struct {
	Suite     string           `json:"suite"`
	Target    string           `json:"target"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Score     ScoreBoard       `json:"score"`
}
