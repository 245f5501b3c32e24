package harness

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/philoprobe/internal/analysis"
)

// FormatReportText writes a human-readable scorecard.
func FormatReportText(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Suite %s against %s\n", r.Suite, r.Target)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	for _, sc := range r.Scenarios {
		status := "PASS"
		if !sc.Passed {
			status = "FAIL"
		}
		fmt.Fprintln(w, "")
		if sc.Description != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", status, sc.Name, sc.Description)
		} else {
			fmt.Fprintf(w, "[%s] %s\n", status, sc.Name)
		}
		for _, c := range sc.Checks {
			writeCheck(w, c)
		}
	}

	s := r.Score
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Scenarios: %d total, %d passed, %d failed\n", s.Scenarios, s.Passed, s.Failed)
	fmt.Fprintf(w, "Checks:    %d passed, %d failed, %d skipped\n", s.ChecksPassed, s.ChecksFailed, s.ChecksSkipped)
}

func writeCheck(w io.Writer, c analysis.CheckResult) {
	mark := "✓"
	switch {
	case c.Skipped:
		mark = "-"
	case !c.Passed:
		mark = "✗"
	}
	lines := strings.Split(c.Diagnostic, "\n")
	fmt.Fprintf(w, "  %s %s: %s\n", mark, c.Name, lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(w, "      %s\n", strings.TrimSpace(l))
	}
}
