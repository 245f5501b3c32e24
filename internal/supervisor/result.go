package supervisor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/tracker"
)

// SpawnError reports that the target could not be started at all.
type SpawnError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func newSpawnError(path string, err error) *SpawnError {
	return &SpawnError{Path: path, Reason: err.Error(), Err: err}
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %s", e.Path, e.Reason)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsSpawnError returns true if err is or wraps a *SpawnError.
func IsSpawnError(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}

// RunResult is everything observed during one supervised execution.
type RunResult struct {
	RunID string   `json:"run_id"`
	Path  string   `json:"path"`
	Args  []string `json:"args"`

	// ExitCode is nil when the process was ended by a signal or never ran.
	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
	TimedOut bool   `json:"timed_out"`

	// Lines is the raw stdout log, including lines that did not parse.
	Lines  []string                   `json:"lines"`
	Events []event.Event              `json:"events"`
	Actors map[int]tracker.ActorState `json:"actors"`
	Stderr []string                   `json:"stderr,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Failure *SpawnError `json:"failure,omitempty"`
}

// Failed reports whether the target could not be spawned.
func (r *RunResult) Failed() bool {
	return r != nil && r.Failure != nil
}

// Exited reports whether the process exited on its own with a status code.
func (r *RunResult) Exited() bool {
	return r != nil && r.ExitCode != nil
}

// CommandLine renders the invocation for diagnostics.
func (r *RunResult) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Path
	}
	return r.Path + " " + strings.Join(r.Args, " ")
}

// AllOutput returns stdout lines followed by stderr lines.
func (r *RunResult) AllOutput() []string {
	out := make([]string, 0, len(r.Lines)+len(r.Stderr))
	out = append(out, r.Lines...)
	return append(out, r.Stderr...)
}
