package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/supervisor"
	"github.com/roach88/philoprobe/internal/tracker"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// StoredRun is a run read back from the store.
type StoredRun struct {
	Scenario string                 `json:"scenario"`
	Run      *supervisor.RunResult  `json:"run"`
	Verdicts []analysis.CheckResult `json:"verdicts"`
}

// RunInfo is one row of ListRuns.
type RunInfo struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Scenario  string    `json:"scenario"`
	Path      string    `json:"path"`
	Args      []string  `json:"args"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	TimedOut  bool      `json:"timed_out"`
	StartedAt time.Time `json:"started_at"`
	Lines     int       `json:"lines"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
}

// ReadRun loads a run by id. Events and actor states are rebuilt from the
// stored stdout lines.
func (s *Store) ReadRun(ctx context.Context, id string) (*StoredRun, error) {
	var (
		scenario, path, argsJSON, signal, startedAt string
		exitCode                                    sql.NullInt64
		timedOut                                    int
		durationNS                                  int64
		failure                                     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT scenario, path, args, exit_code, signal, timed_out, started_at, duration_ns, failure
		FROM runs WHERE id = ?
	`, id).Scan(&scenario, &path, &argsJSON, &exitCode, &signal, &timedOut, &startedAt, &durationNS, &failure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	started, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	lines, err := s.readLines(ctx, "run_lines", id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	stderr, err := s.readLines(ctx, "run_stderr", id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	run := &supervisor.RunResult{
		RunID:     id,
		Path:      path,
		Args:      args,
		ExitCode:  intPtr(exitCode),
		Signal:    signal,
		TimedOut:  timedOut != 0,
		Lines:     lines,
		Stderr:    stderr,
		StartedAt: started,
		Duration:  time.Duration(durationNS),
	}
	if failure.Valid {
		run.Failure = &supervisor.SpawnError{Path: path, Reason: failure.String}
	}
	run.Events = parseLines(lines)
	run.Actors = tracker.Replay(run.Events)

	verdicts, err := s.ReadVerdicts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}

	return &StoredRun{Scenario: scenario, Run: run, Verdicts: verdicts}, nil
}

func parseLines(lines []string) []event.Event {
	events := []event.Event{}
	for _, l := range lines {
		if e, ok := event.Parse(l); ok {
			events = append(events, e)
		}
	}
	return events
}

func (s *Store) readLines(ctx context.Context, table, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT line FROM "+table+" WHERE run_id = ? ORDER BY seq ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	lines := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return lines, nil
}

// ReadVerdicts returns the stored verdicts of a run in evaluation order.
func (s *Store) ReadVerdicts(ctx context.Context, runID string) ([]analysis.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, passed, skipped, diagnostic
		FROM verdicts WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []analysis.CheckResult{}
	for rows.Next() {
		var (
			c               analysis.CheckResult
			passed, skipped int
		)
		if err := rows.Scan(&c.Name, &passed, &skipped, &c.Diagnostic); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		c.Passed = passed != 0
		c.Skipped = skipped != 0
		verdicts = append(verdicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return verdicts, nil
}

// ListRuns returns every stored run in insertion order with line and
// verdict counts.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.scenario, r.path, r.args, r.exit_code, r.signal, r.timed_out, r.started_at,
			(SELECT COUNT(*) FROM run_lines l WHERE l.run_id = r.id),
			(SELECT COUNT(*) FROM verdicts v WHERE v.run_id = r.id AND v.passed = 1),
			(SELECT COUNT(*) FROM verdicts v WHERE v.run_id = r.id AND v.passed = 0)
		FROM runs r
		ORDER BY r.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var (
			info              RunInfo
			argsJSON, started string
			exitCode          sql.NullInt64
			timedOut          int
		)
		if err := rows.Scan(&info.ID, &info.Seq, &info.Scenario, &info.Path, &argsJSON, &exitCode,
			&info.Signal, &timedOut, &started, &info.Lines, &info.Passed, &info.Failed); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		if info.Args, err = unmarshalArgs(argsJSON); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if info.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		info.ExitCode = intPtr(exitCode)
		info.TimedOut = timedOut != 0
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
