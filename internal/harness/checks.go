package harness

import (
	"fmt"
	"strconv"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/supervisor"
)

// CheckSpawn is the single check reported for a target that never started.
const CheckSpawn = "spawn"

// EvaluateChecks runs every check in specs over run. n is the declared actor
// count for checks that need one. A spawn failure short-circuits into a
// single failing "spawn" check.
func EvaluateChecks(run *supervisor.RunResult, specs []CheckSpec, n int, th analysis.Thresholds) []analysis.CheckResult {
	if run.Failed() {
		return []analysis.CheckResult{{
			Name:       CheckSpawn,
			Passed:     false,
			Diagnostic: run.Failure.Error(),
		}}
	}

	th = th.WithDefaults()
	results := make([]analysis.CheckResult, 0, len(specs))
	for _, spec := range specs {
		results = append(results, evaluate(run, spec, n, th))
	}
	return results
}

// EvaluateVariant evaluates the scenario's checks over one of its runs.
// Check names of a named variant are prefixed with "variant/".
func EvaluateVariant(sc *Scenario, v Variant, run *supervisor.RunResult, th analysis.Thresholds) []analysis.CheckResult {
	checks := EvaluateChecks(run, sc.Checks, declaredActors(sc.Actors, v.Args), th)
	if v.Name != "" {
		for i := range checks {
			checks[i].Name = v.Name + "/" + checks[i].Name
		}
	}
	return checks
}

func evaluate(run *supervisor.RunResult, spec CheckSpec, n int, th analysis.Thresholds) analysis.CheckResult {
	switch spec.Type {
	case analysis.CheckFormat:
		return analysis.FormatValidity(run, th.MaxOffenders)
	case analysis.CheckDeathDetected:
		return analysis.DeathDetected(run)
	case analysis.CheckDeathTiming:
		expected, ok := expectedDeath(spec, run.Args)
		if !ok {
			return analysis.CheckResult{
				Name:       spec.Type,
				Diagnostic: "no expected_ms given and time_to_die argument is not numeric",
			}
		}
		return analysis.DeathTiming(run, expected, deathTolerance(spec, n))
	case analysis.CheckResourceBeforeDeath:
		want := spec.Count
		if want == 0 {
			want = 1
		}
		return analysis.ResourceBeforeDeath(run, want)
	case analysis.CheckQuotaCompletion:
		return analysis.QuotaCompletion(run)
	case analysis.CheckDeadlock:
		return analysis.Deadlock(run, n)
	case analysis.CheckFairness:
		return analysis.Fairness(run, n, th)
	case analysis.CheckArgumentRejection:
		return analysis.ArgumentRejection(run)
	case analysis.CheckSurvival:
		return analysis.Survival(run)
	case analysis.CheckMonotonic:
		return analysis.MonotonicTimestamps(run)
	case analysis.CheckNoEventsAfterDeath:
		return analysis.NoEventsAfterDeath(run)
	case analysis.CheckActorRange:
		return analysis.ActorRange(run, n)
	default:
		return analysis.CheckResult{
			Name:       spec.Type,
			Diagnostic: fmt.Sprintf("unknown check type %q", spec.Type),
		}
	}
}

func expectedDeath(spec CheckSpec, args []string) (uint64, bool) {
	if spec.ExpectedMS > 0 {
		return uint64(spec.ExpectedMS), true
	}
	if len(args) < 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(args[1], 10, 64)
	return v, err == nil
}

func deathTolerance(spec CheckSpec, n int) uint64 {
	switch {
	case spec.ToleranceMS > 0:
		return uint64(spec.ToleranceMS)
	case n == 1:
		return analysis.SingleActorDeathToleranceMS
	default:
		return analysis.DefaultDeathToleranceMS
	}
}
