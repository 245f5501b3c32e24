package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/supervisor"
)

// WriteRun stores a run and its captured output in one transaction.
// Writing a run id that already exists is a no-op.
func (s *Store) WriteRun(ctx context.Context, scenario string, run *supervisor.RunResult) error {
	argsJSON, err := marshalArgs(run.Args)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	var failure sql.NullString
	if run.Failure != nil {
		failure = sql.NullString{String: run.Failure.Reason, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, scenario, path, args, exit_code, signal, timed_out, started_at, duration_ns, failure)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.RunID,
		scenario,
		run.Path,
		argsJSON,
		nullableInt(run.ExitCode),
		run.Signal,
		boolInt(run.TimedOut),
		formatTime(run.StartedAt),
		run.Duration.Nanoseconds(),
		failure,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	if err := insertLines(ctx, tx, "run_lines", run.RunID, run.Lines); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if err := insertLines(ctx, tx, "run_stderr", run.RunID, run.Stderr); err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

// insertLines writes lines with seq starting at 1. table is one of the
// fixed line tables, never user input.
func insertLines(ctx context.Context, tx *sql.Tx, table, runID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+" (run_id, seq, line) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()

	for i, line := range lines {
		if _, err := stmt.ExecContext(ctx, runID, i+1, line); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

// WriteVerdicts replaces the stored verdicts of a run.
func (s *Store) WriteVerdicts(ctx context.Context, runID string, checks []analysis.CheckResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write verdicts: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM verdicts WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("write verdicts: %w", err)
	}
	for i, c := range checks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO verdicts (run_id, seq, name, passed, skipped, diagnostic)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, i+1, c.Name, boolInt(c.Passed), boolInt(c.Skipped), c.Diagnostic)
		if err != nil {
			return fmt.Errorf("write verdicts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write verdicts: commit: %w", err)
	}
	return nil
}

// RecordRun stores a run together with its verdicts.
func (s *Store) RecordRun(ctx context.Context, scenario string, run *supervisor.RunResult, checks []analysis.CheckResult) error {
	if err := s.WriteRun(ctx, scenario, run); err != nil {
		return err
	}
	return s.WriteVerdicts(ctx, run.RunID, checks)
}
