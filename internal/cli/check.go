package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/collector"
	"github.com/roach88/philoprobe/internal/supervisor"
	"github.com/roach88/philoprobe/internal/tracker"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Timeout       time.Duration
	Watch         bool
	WatchInterval time.Duration
	Actors        int
}

// checkReport is the JSON payload of the check command.
type checkReport struct {
	RunID     string             `json:"run_id"`
	Command   string             `json:"command"`
	ExitCode  *int               `json:"exit_code,omitempty"`
	Signal    string             `json:"signal,omitempty"`
	TimedOut  bool               `json:"timed_out"`
	Stats     analysis.Stats     `json:"stats"`
	Diagnosis analysis.Diagnosis `json:"diagnosis"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <target> [-- args...]",
		Short: "Run a simulator once and report per-actor statistics",
		Long: `Run the target once with the given arguments, stop it after --timeout,
and print per-actor meal statistics plus a deadlock/starvation diagnosis.

Example:
  philoprobe check ./philo --timeout 3s -- 5 800 200 200

Exit codes:
  0 - diagnosis ok
  1 - deadlock or starvation
  2 - command error or target could not be spawned`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts, args[0], args[1:])
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "stop the target after this long")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "print live actor snapshots while the target runs")
	cmd.Flags().DurationVar(&opts.WatchInterval, "watch-interval", time.Second, "minimum time between watch snapshots")
	cmd.Flags().IntVar(&opts.Actors, "actors", 0, "expected actor count (default: first target argument)")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions, target string, targetArgs []string) error {
	out := opts.formatter(cmd)
	if err := checkTarget(target); err != nil {
		_ = out.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}
	if opts.Timeout <= 0 {
		return NewExitError(ExitCommandError, "--timeout must be positive")
	}

	cfg := supervisor.Config{}
	if opts.Watch {
		cfg.OnPoll = watchPrinter(cmd.ErrOrStderr(), opts.WatchInterval)
	}
	sup := supervisor.New(cfg, opts.logger(cmd.ErrOrStderr()), nil)

	run := sup.Run(cmd.Context(), target, targetArgs, opts.Timeout)
	if run.Failed() {
		_ = out.Error(ErrCodeSpawn, run.Failure.Error(), nil)
		return WrapExitError(ExitCommandError, "spawn target", run.Failure)
	}

	n := opts.Actors
	if n <= 0 {
		n = actorsFromArgs(targetArgs)
	}
	report := checkReport{
		RunID:     run.RunID,
		Command:   run.CommandLine(),
		ExitCode:  run.ExitCode,
		Signal:    run.Signal,
		TimedOut:  run.TimedOut,
		Stats:     analysis.ComputeStats(run),
		Diagnosis: analysis.Diagnose(run, n, analysis.DefaultThresholds()),
	}

	err := out.Render(report, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s: %s\n\n", report.RunID, report.Command)
		analysis.FormatStatsText(w, report.Stats, report.Diagnosis)
	})
	if err != nil {
		return err
	}

	if report.Diagnosis.Verdict != analysis.VerdictOK {
		return NewExitError(ExitFailure, "diagnosis: "+report.Diagnosis.Verdict)
	}
	return nil
}

// watchPrinter returns an OnPoll hook writing at most one snapshot line per
// interval.
func watchPrinter(w io.Writer, interval time.Duration) func(string, collector.Snapshot) {
	every := &rate.Sometimes{First: 1, Interval: interval}
	return func(runID string, snap collector.Snapshot) {
		every.Do(func() {
			fmt.Fprintln(w, formatWatchLine(runID, snap))
		})
	}
}

func formatWatchLine(runID string, snap collector.Snapshot) string {
	var last uint64
	if n := len(snap.Events); n > 0 {
		last = snap.Events[n-1].TimestampMS
	}
	alive, meals := 0, 0
	for _, st := range snap.Actors {
		if st.Alive {
			alive++
		}
		meals += st.MealsEaten
	}
	line := fmt.Sprintf("[watch %s] t=%dms lines=%d actors=%d alive=%d meals=%d",
		runID, last, len(snap.Lines), len(snap.Actors), alive, meals)
	for _, id := range tracker.SortedIDs(snap.Actors) {
		st := snap.Actors[id]
		if !st.Alive {
			line += fmt.Sprintf(" dead=%d", id)
		}
	}
	return line
}

// actorsFromArgs reads the actor count from the first simulator argument.
func actorsFromArgs(args []string) int {
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
