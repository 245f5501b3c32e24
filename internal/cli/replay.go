package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/harness"
	"github.com/roach88/philoprobe/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	SuitePath string
}

// replayReport is the JSON payload of replay with a run id.
type replayReport struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario"`
	Command  string `json:"command"`

	Stats     analysis.Stats     `json:"stats"`
	Diagnosis analysis.Diagnosis `json:"diagnosis"`

	// Reevaluated is false when the stored scenario is not part of the
	// suite, so only statistics could be recomputed.
	Reevaluated bool                   `json:"reevaluated"`
	Stored      []analysis.CheckResult `json:"stored"`
	Checks      []analysis.CheckResult `json:"checks,omitempty"`
	Mismatches  []string               `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <db> [run-id]",
		Short: "List recorded runs or re-analyse one",
		Long: `Without a run id, list the runs recorded in the database.

With a run id, rebuild the run from its stored stdout lines, recompute its
statistics, re-evaluate its scenario checks and compare them with the
verdicts recorded when it ran.

Exit codes:
  0 - listing succeeded, or re-evaluation matches the stored verdicts
  1 - re-evaluation diverged from the stored verdicts
  2 - database or run not found`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db := args[0]
			if len(args) == 1 {
				return runReplayList(cmd, opts, db)
			}
			return runReplay(cmd, opts, db, args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.SuitePath, "suite", "s", "", "suite the run was recorded with (default: built-in)")

	return cmd
}

// openExisting opens a store that must already exist; Open would otherwise
// create an empty database.
func openExisting(out *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		_ = out.Error(ErrCodeNotFound, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return st, nil
}

func runReplayList(cmd *cobra.Command, opts *ReplayOptions, path string) error {
	out := opts.formatter(cmd)
	st, err := openExisting(out, path)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "list runs", err)
	}

	return out.Render(runs, func(w io.Writer) {
		if len(runs) == 0 {
			fmt.Fprintln(w, "no runs recorded")
			return
		}
		fmt.Fprintf(w, "%-36s  %-28s  %-10s  %6s  %s\n", "RUN", "SCENARIO", "OUTCOME", "LINES", "CHECKS")
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s  %-28s  %-10s  %6d  %d/%d\n",
				r.ID, r.Scenario, outcome(r), r.Lines, r.Passed, r.Passed+r.Failed)
		}
	})
}

func outcome(r store.RunInfo) string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.ExitCode != nil:
		return fmt.Sprintf("exit %d", *r.ExitCode)
	case r.Signal != "":
		return r.Signal
	default:
		return "failed"
	}
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions, path, runID string) error {
	out := opts.formatter(cmd)
	st, err := openExisting(out, path)
	if err != nil {
		return err
	}
	defer st.Close()

	stored, err := st.ReadRun(cmd.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = out.Error(ErrCodeRunNotFound, "run "+runID+" not found", nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "read run", err)
	}

	suite, err := loadSuiteOrDefault(opts.SuitePath)
	if err != nil {
		return suiteLoadError(out, err)
	}

	run := stored.Run
	report := replayReport{
		RunID:    run.RunID,
		Scenario: stored.Scenario,
		Command:  run.CommandLine(),
		Stats:    analysis.ComputeStats(run),
		Stored:   stored.Verdicts,
	}

	n := actorsFromArgs(run.Args)
	if sc, v, ok := suite.Lookup(stored.Scenario); ok {
		n = sc.DeclaredActors()
		report.Reevaluated = true
		report.Checks = harness.EvaluateVariant(sc, v, run, suite.Thresholds)
		report.Mismatches = compareVerdicts(stored.Verdicts, report.Checks)
	} else {
		out.VerboseLog("scenario %q is not in suite %q; skipping re-evaluation", stored.Scenario, suite.Name)
	}
	report.Diagnosis = analysis.Diagnose(run, n, suite.Thresholds)

	if err := out.Render(report, func(w io.Writer) { formatReplayText(w, &report) }); err != nil {
		return err
	}
	if len(report.Mismatches) > 0 {
		return NewExitError(ExitFailure,
			fmt.Sprintf("re-evaluation diverged from stored verdicts (%d)", len(report.Mismatches)))
	}
	return nil
}

// compareVerdicts lists every check whose outcome differs between the
// stored and the recomputed verdicts. Diagnostics are not compared.
func compareVerdicts(stored, fresh []analysis.CheckResult) []string {
	byName := make(map[string]analysis.CheckResult, len(stored))
	for _, c := range stored {
		byName[c.Name] = c
	}

	var out []string
	for _, c := range fresh {
		old, ok := byName[c.Name]
		if !ok {
			out = append(out, c.Name+": not recorded")
			continue
		}
		delete(byName, c.Name)
		if old.Passed != c.Passed || old.Skipped != c.Skipped {
			out = append(out, fmt.Sprintf("%s: recorded %s, now %s", c.Name, verdictWord(old), verdictWord(c)))
		}
	}
	for _, c := range stored {
		if _, left := byName[c.Name]; left {
			out = append(out, c.Name+": no longer evaluated")
		}
	}
	return out
}

func verdictWord(c analysis.CheckResult) string {
	switch {
	case c.Skipped:
		return "skip"
	case c.Passed:
		return "pass"
	default:
		return "fail"
	}
}

func formatReplayText(w io.Writer, r *replayReport) {
	fmt.Fprintf(w, "Run %s (%s): %s\n\n", r.RunID, r.Scenario, r.Command)
	analysis.FormatStatsText(w, r.Stats, r.Diagnosis)
	fmt.Fprintln(w, "")

	if !r.Reevaluated {
		fmt.Fprintln(w, "Checks: scenario not in suite, stored verdicts only")
		for _, c := range r.Stored {
			fmt.Fprintf(w, "  %-24s %s\n", c.Name, verdictWord(c))
		}
		return
	}

	if len(r.Mismatches) == 0 {
		fmt.Fprintf(w, "Checks: %d re-evaluated, all match the recorded verdicts\n", len(r.Checks))
		return
	}
	fmt.Fprintf(w, "Checks: %d re-evaluated, %d differ\n", len(r.Checks), len(r.Mismatches))
	fmt.Fprintln(w, "  "+strings.Join(r.Mismatches, "\n  "))
}
