package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/philoprobe/internal/harness"
)

// validateResult is the JSON payload of the validate command.
type validateResult struct {
	Suite     string             `json:"suite"`
	Path      string             `json:"path"`
	Scenarios []validateScenario `json:"scenarios"`
}

type validateScenario struct {
	Name      string `json:"name"`
	Runs      int    `json:"runs"`
	Checks    int    `json:"checks"`
	TimeoutMS int    `json:"timeout_ms"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <suite>",
		Short: "Validate a suite file",
		Long: `Load a YAML or CUE suite file and report whether it is valid.

Exit codes:
  0 - suite is valid
  1 - suite is invalid
  2 - suite file not found`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, args[0])
		},
	}
}

func runValidate(cmd *cobra.Command, opts *RootOptions, path string) error {
	out := opts.formatter(cmd)

	suite, err := harness.LoadSuite(path)
	if err != nil {
		return suiteLoadError(out, err)
	}

	res := validateResult{Suite: suite.Name, Path: path, Scenarios: []validateScenario{}}
	for i := range suite.Scenarios {
		sc := &suite.Scenarios[i]
		res.Scenarios = append(res.Scenarios, validateScenario{
			Name:      sc.Name,
			Runs:      len(sc.Runs()),
			Checks:    len(sc.Checks),
			TimeoutMS: sc.TimeoutMS,
		})
	}

	return out.Render(res, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s: suite %q is valid (%d scenarios)\n", path, res.Suite, len(res.Scenarios))
		if opts.Verbose {
			for _, sc := range res.Scenarios {
				fmt.Fprintf(w, "  %-20s runs=%d checks=%d timeout=%dms\n", sc.Name, sc.Runs, sc.Checks, sc.TimeoutMS)
			}
		}
	})
}
