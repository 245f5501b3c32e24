package analysis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/supervisor"
	"github.com/roach88/philoprobe/internal/tracker"
)

// Check names as they appear in CheckResult.Name and in suite files.
const (
	CheckFormat              = "format"
	CheckDeathDetected       = "death_detected"
	CheckDeathTiming         = "death_timing"
	CheckResourceBeforeDeath = "resource_before_death"
	CheckQuotaCompletion     = "quota_completion"
	CheckDeadlock            = "no_deadlock"
	CheckFairness            = "fairness"
	CheckArgumentRejection   = "argument_rejection"
	CheckSurvival            = "survival"
	CheckMonotonic           = "monotonic_timestamps"
	CheckNoEventsAfterDeath  = "no_events_after_death"
	CheckActorRange          = "actor_range"
)

// Death timing tolerances in milliseconds.
const (
	DefaultDeathToleranceMS     = 10
	SingleActorDeathToleranceMS = 30
)

// CheckResult is the verdict of one check over one run.
type CheckResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Skipped    bool   `json:"skipped,omitempty"`
	Diagnostic string `json:"diagnostic"`
}

func pass(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Passed: true, Diagnostic: fmt.Sprintf(format, args...)}
}

func fail(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Passed: false, Diagnostic: fmt.Sprintf(format, args...)}
}

// skip is a neutral verdict: it counts as passed so that an inconclusive
// heuristic never fails a scenario on its own.
func skip(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Passed: true, Skipped: true, Diagnostic: fmt.Sprintf(format, args...)}
}

// FormatValidity requires every stdout line to match the strict event
// grammar or be the quota line. At most maxOffenders lines are reported.
func FormatValidity(run *supervisor.RunResult, maxOffenders int) CheckResult {
	if maxOffenders <= 0 {
		maxOffenders = DefaultThresholds().MaxOffenders
	}

	var offenders []string
	total := 0
	for i, raw := range run.Lines {
		line := event.Normalize(raw)
		if event.MatchesGrammar(line) || event.IsQuotaLine(line) {
			continue
		}
		total++
		if len(offenders) < maxOffenders {
			offenders = append(offenders, fmt.Sprintf("Line %d: %s", i+1, raw))
		}
	}

	if total == 0 {
		return pass(CheckFormat, "all %d output lines follow the required format", len(run.Lines))
	}
	return fail(CheckFormat, "%d invalid line(s):\n  %s", total, strings.Join(offenders, "\n  "))
}

// firstDeath returns the index of the first Died event, or -1.
func firstDeath(events []event.Event) int {
	return slices.IndexFunc(events, func(e event.Event) bool {
		return e.Kind == event.KindDied
	})
}

// DeathDetected passes when at least one Died event was observed.
func DeathDetected(run *supervisor.RunResult) CheckResult {
	i := firstDeath(run.Events)
	if i < 0 {
		return fail(CheckDeathDetected, "no death reported in %d events", len(run.Events))
	}
	e := run.Events[i]
	return pass(CheckDeathDetected, "actor %d died at %dms", e.ActorID, e.TimestampMS)
}

// DeathTiming compares the first death timestamp to expectedMS.
func DeathTiming(run *supervisor.RunResult, expectedMS, toleranceMS uint64) CheckResult {
	i := firstDeath(run.Events)
	if i < 0 {
		return fail(CheckDeathTiming, "no death reported, expected one at ~%dms", expectedMS)
	}

	ts := run.Events[i].TimestampMS
	diff := absDiff(ts, expectedMS)
	if diff <= toleranceMS {
		return pass(CheckDeathTiming, "death reported at %dms (expected ~%dms, off by %dms)", ts, expectedMS, diff)
	}
	return fail(CheckDeathTiming, "death reported at %dms, %dms outside the %dms tolerance from %dms",
		ts, diff-toleranceMS, toleranceMS, expectedMS)
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// ResourceBeforeDeath requires exactly want TookResource events before the
// first death. A lone actor has one resource and must take it before dying.
func ResourceBeforeDeath(run *supervisor.RunResult, want int) CheckResult {
	end := firstDeath(run.Events)
	if end < 0 {
		return fail(CheckResourceBeforeDeath, "no death reported")
	}

	took := 0
	for _, e := range run.Events[:end] {
		if e.Kind == event.KindTookResource {
			took++
		}
	}
	if took != want {
		return fail(CheckResourceBeforeDeath, "%d resource event(s) before death, want %d", took, want)
	}
	return pass(CheckResourceBeforeDeath, "%d resource event(s) before death", took)
}

// QuotaCompletion passes when the quota line was printed and nobody died.
func QuotaCompletion(run *supervisor.RunResult) CheckResult {
	quota := slices.ContainsFunc(run.Lines, func(l string) bool {
		return event.IsQuotaLine(event.Normalize(l))
	})
	died := firstDeath(run.Events) >= 0

	switch {
	case quota && !died:
		return pass(CheckQuotaCompletion, "quota reached with no deaths")
	case !quota && died:
		return fail(CheckQuotaCompletion, "an actor died and the quota line never appeared")
	case died:
		return fail(CheckQuotaCompletion, "quota line present but an actor died")
	default:
		return fail(CheckQuotaCompletion, "quota line never appeared")
	}
}

// Deadlock requires that every actor 1..n ate at least once. Ids outside
// that range do not count.
func Deadlock(run *supervisor.RunResult, n int) CheckResult {
	if n <= 0 {
		return fail(CheckDeadlock, "no actor count declared")
	}
	meals := mealsByActor(run.Events)
	ate := 0
	for id := 1; id <= n; id++ {
		if meals[id] > 0 {
			ate++
		}
	}
	if ate == n {
		return pass(CheckDeadlock, "all %d actors ate at least once", n)
	}
	return fail(CheckDeadlock, "only %d of %d actors ate, possible deadlock", ate, n)
}

// Fairness flags any actor whose meal count is below th.FairnessRatio times
// the mean. It is only evaluated when every one of the n actors ate and the
// sample holds at least n*th.MinSampleFactor meals; otherwise it is skipped.
//
// The ratio is a heuristic, not a proof of starvation: a failing result
// means the distribution looks uneven over the observed window.
func Fairness(run *supervisor.RunResult, n int, th Thresholds) CheckResult {
	th = th.WithDefaults()
	if n <= 0 {
		return skip(CheckFairness, "no actor count declared")
	}

	meals := mealsByActor(run.Events)
	total := 0
	for id := 1; id <= n; id++ {
		if meals[id] == 0 {
			return skip(CheckFairness, "actor %d never ate; fairness not evaluated", id)
		}
		total += meals[id]
	}
	if minSample := n * th.MinSampleFactor; total < minSample {
		return skip(CheckFairness, "only %d meals observed, need %d to judge fairness", total, minSample)
	}

	mean := float64(total) / float64(n)
	floor := mean * th.FairnessRatio
	var starved []string
	for id := 1; id <= n; id++ {
		if float64(meals[id]) < floor {
			starved = append(starved, fmt.Sprintf("%d (%d meals)", id, meals[id]))
		}
	}
	if len(starved) > 0 {
		return fail(CheckFairness, "meal distribution uneven (mean %.2f, floor %.2f): %s",
			mean, floor, strings.Join(starved, ", "))
	}
	return pass(CheckFairness, "%d meals across %d actors, mean %.2f", total, n, mean)
}

// ArgumentRejection expects a non-zero exit and at least one output line,
// on stdout or stderr, containing "Error".
func ArgumentRejection(run *supervisor.RunResult) CheckResult {
	if run.Failed() {
		return fail(CheckArgumentRejection, "target did not start: %s", run.Failure.Reason)
	}

	hasError := slices.ContainsFunc(run.AllOutput(), func(l string) bool {
		return strings.Contains(l, "Error")
	})
	errorExit := run.ExitCode != nil && *run.ExitCode != 0

	if hasError && errorExit {
		return pass(CheckArgumentRejection, "rejected with exit code %d", *run.ExitCode)
	}
	return fail(CheckArgumentRejection, "exit code %s, error message: %s", exitText(run), yesNo(hasError))
}

func exitText(run *supervisor.RunResult) string {
	switch {
	case run.ExitCode != nil:
		return fmt.Sprint(*run.ExitCode)
	case run.Signal != "":
		return "none (" + run.Signal + ")"
	case run.TimedOut:
		return "none (timed out)"
	default:
		return "none"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var crashSignals = []string{"SIGSEGV", "SIGABRT", "SIGBUS"}

// Survival is the stress property: the target started, was still running
// when the window closed, and never crashed.
func Survival(run *supervisor.RunResult) CheckResult {
	if run.Failed() {
		return fail(CheckSurvival, "target did not start: %s", run.Failure.Reason)
	}
	if slices.Contains(crashSignals, run.Signal) {
		return fail(CheckSurvival, "target crashed with %s", run.Signal)
	}
	if slices.ContainsFunc(run.AllOutput(), func(l string) bool {
		return strings.Contains(l, "Segmentation fault")
	}) {
		return fail(CheckSurvival, "segmentation fault reported in output")
	}
	if !run.TimedOut {
		return fail(CheckSurvival, "target stopped before the window closed (exit code %s)", exitText(run))
	}
	return pass(CheckSurvival, "ran for the whole window, %d events", len(run.Events))
}

// MonotonicTimestamps reports the first event whose timestamp goes backwards.
func MonotonicTimestamps(run *supervisor.RunResult) CheckResult {
	for i := 1; i < len(run.Events); i++ {
		prev, cur := run.Events[i-1], run.Events[i]
		if cur.TimestampMS < prev.TimestampMS {
			return fail(CheckMonotonic, "event %d (%s) is earlier than event %d (%s)", i+1, cur, i, prev)
		}
	}
	return pass(CheckMonotonic, "%d events in timestamp order", len(run.Events))
}

// NoEventsAfterDeath requires that a dead actor stays silent.
func NoEventsAfterDeath(run *supervisor.RunResult) CheckResult {
	var noisy []string
	for _, id := range tracker.SortedIDs(run.Actors) {
		if n := run.Actors[id].EventsAfterDeath; n > 0 {
			noisy = append(noisy, fmt.Sprintf("%d (%d events)", id, n))
		}
	}
	if len(noisy) > 0 {
		return fail(CheckNoEventsAfterDeath, "events after death from actor(s) %s", strings.Join(noisy, ", "))
	}
	return pass(CheckNoEventsAfterDeath, "no events after death")
}

// ActorRange requires every actor id to lie in 1..n.
func ActorRange(run *supervisor.RunResult, n int) CheckResult {
	var out []string
	for _, id := range tracker.SortedIDs(run.Actors) {
		if id < 1 || id > n {
			out = append(out, fmt.Sprint(id))
		}
	}
	if len(out) > 0 {
		return fail(CheckActorRange, "actor id(s) outside 1..%d: %s", n, strings.Join(out, ", "))
	}
	return pass(CheckActorRange, "%d actor id(s) within 1..%d", len(run.Actors), n)
}

func mealsByActor(events []event.Event) map[int]int {
	meals := make(map[int]int)
	for _, e := range events {
		if e.Kind == event.KindEating {
			meals[e.ActorID]++
		}
	}
	return meals
}
