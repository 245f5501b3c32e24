package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/philoprobe/internal/harness"
	"github.com/roach88/philoprobe/internal/store"
	"github.com/roach88/philoprobe/internal/supervisor"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SuitePath      string
	Filter         string
	DBPath         string
	TranscriptsDir string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [target]",
		Short: "Run a scenario suite against a simulator",
		Long: `Run every scenario of a suite against the target binary, one process at
a time, and print the scorecard.

Without --suite the built-in suite is used. The target defaults to
$PHILOPROBE_TARGET and the database to $PHILOPROBE_DB.

Exit codes:
  0 - all scenarios passed
  1 - at least one scenario failed
  2 - command error (missing target, bad suite path)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return runSuite(cmd, opts, envDefault(target, EnvTarget))
		},
	}

	cmd.Flags().StringVarP(&opts.SuitePath, "suite", "s", "", "suite file (.yaml or .cue)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name matches this glob")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database to record runs into")
	cmd.Flags().StringVar(&opts.TranscriptsDir, "transcripts", "", "directory for per-run JSONL stdout transcripts")

	return cmd
}

func runSuite(cmd *cobra.Command, opts *RunOptions, target string) error {
	out := opts.formatter(cmd)
	if err := checkTarget(target); err != nil {
		_ = out.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}

	suite, err := loadSuiteOrDefault(opts.SuitePath)
	if err != nil {
		return suiteLoadError(out, err)
	}
	if opts.Filter != "" {
		suite, err = suite.Filter(opts.Filter)
		if err != nil {
			_ = out.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid filter", err)
		}
		if len(suite.Scenarios) == 0 {
			_ = out.Error(ErrCodeNotFound, "no scenario matches "+opts.Filter, nil)
			return NewExitError(ExitCommandError, "no scenario matches "+opts.Filter)
		}
	}

	logger := opts.logger(cmd.ErrOrStderr())

	cfg := suite.Supervisor.Config()
	if opts.TranscriptsDir != "" {
		cfg.TranscriptDir = opts.TranscriptsDir
	}
	sup := supervisor.New(cfg, logger, nil)

	runnerOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithScenarioHook(func(res harness.ScenarioResult) {
			out.VerboseLog("scored %s: passed=%t", res.Name, res.Passed)
		}),
	}

	dbPath := envDefault(opts.DBPath, EnvDatabase)
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			_ = out.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "open store", err)
		}
		defer st.Close()
		runnerOpts = append(runnerOpts, harness.WithRecorder(st))
		out.VerboseLog("recording runs into %s", dbPath)
	}

	out.VerboseLog("running suite %q (%d scenarios) against %s", suite.Name, len(suite.Scenarios), target)
	report := harness.NewRunner(sup, runnerOpts...).Run(cmd.Context(), target, suite)

	if err := out.Render(report, func(w io.Writer) { harness.FormatReportText(w, report) }); err != nil {
		return err
	}

	if err := cmd.Context().Err(); err != nil {
		return WrapExitError(ExitFailure, "interrupted", err)
	}
	if !report.Score.AllPassed() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d scenarios failed", report.Score.Failed, report.Score.Scenarios))
	}
	return nil
}

// loadSuiteOrDefault loads the suite at path, or the built-in suite when
// path is empty.
func loadSuiteOrDefault(path string) (*harness.Suite, error) {
	if path == "" {
		return harness.DefaultSuite(), nil
	}
	return harness.LoadSuite(path)
}

// suiteLoadError reports a suite loading failure: a missing file is a
// command error, an invalid one a failure.
func suiteLoadError(out *OutputFormatter, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		_ = out.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "suite not found", err)
	}
	var se *harness.SuiteError
	if errors.As(err, &se) {
		_ = out.Error(ErrCodeSuiteInvalid, se.Error(), map[string]string{"field": se.Field})
		return WrapExitError(ExitFailure, "invalid suite", err)
	}
	_ = out.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitFailure, "load suite", err)
}
