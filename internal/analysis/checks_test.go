package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/supervisor"
	"github.com/roach88/philoprobe/internal/tracker"
)

// runOf builds a RunResult the way the supervisor would from captured lines.
func runOf(lines ...string) *supervisor.RunResult {
	events := []event.Event{}
	for _, l := range lines {
		if e, ok := event.Parse(l); ok {
			events = append(events, e)
		}
	}
	code := 0
	return &supervisor.RunResult{
		Lines:    append([]string{}, lines...),
		Events:   events,
		Actors:   tracker.Replay(events),
		ExitCode: &code,
	}
}

func exitWith(run *supervisor.RunResult, code int) *supervisor.RunResult {
	run.ExitCode = &code
	return run
}

func timedOut(run *supervisor.RunResult, signal string) *supervisor.RunResult {
	run.ExitCode = nil
	run.TimedOut = true
	run.Signal = signal
	return run
}

func TestFormatValidity(t *testing.T) {
	t.Run("valid lines and quota line pass", func(t *testing.T) {
		run := runOf(
			"0 1 has taken a fork",
			"0 1 has taken a fork",
			"0 1 is eating",
			"200 1 is sleeping\r",
			"400 1 is thinking",
			"All philosophers have eaten enough",
		)
		res := FormatValidity(run, 5)
		assert.True(t, res.Passed, res.Diagnostic)
		assert.Equal(t, CheckFormat, res.Name)
	})

	t.Run("offenders are capped and numbered from one", func(t *testing.T) {
		run := runOf(
			"0 1 is eating",
			"garbage",
			"0 1 is dancing",
			"0  1 is eating",
		)
		res := FormatValidity(run, 2)
		require.False(t, res.Passed)
		assert.Contains(t, res.Diagnostic, "3 invalid line(s)")
		assert.Contains(t, res.Diagnostic, "Line 2: garbage")
		assert.Contains(t, res.Diagnostic, "Line 3: 0 1 is dancing")
		assert.NotContains(t, res.Diagnostic, "Line 4")
	})

	t.Run("empty output passes", func(t *testing.T) {
		assert.True(t, FormatValidity(runOf(), 0).Passed)
	})
}

func TestDeathChecks(t *testing.T) {
	run := runOf("0 1 has taken a fork", "0 1 is eating", "310 2 died", "311 3 died")

	detected := DeathDetected(run)
	assert.True(t, detected.Passed)
	assert.Contains(t, detected.Diagnostic, "actor 2 died at 310ms")

	assert.True(t, DeathTiming(run, 310, DefaultDeathToleranceMS).Passed)
	assert.True(t, DeathTiming(run, 300, DefaultDeathToleranceMS).Passed)
	assert.True(t, DeathTiming(run, 320, DefaultDeathToleranceMS).Passed)

	late := DeathTiming(run, 290, DefaultDeathToleranceMS)
	assert.False(t, late.Passed)
	assert.Contains(t, late.Diagnostic, "death reported at 310ms")

	none := runOf("0 1 is eating")
	assert.False(t, DeathDetected(none).Passed)
	assert.False(t, DeathTiming(none, 310, 10).Passed)
}

func TestResourceBeforeDeath(t *testing.T) {
	single := runOf("0 1 has taken a fork", "800 1 died")
	assert.True(t, ResourceBeforeDeath(single, 1).Passed)

	greedy := runOf("0 1 has taken a fork", "0 1 has taken a fork", "800 1 died")
	res := ResourceBeforeDeath(greedy, 1)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diagnostic, "2 resource event(s)")

	assert.False(t, ResourceBeforeDeath(runOf("0 1 has taken a fork"), 1).Passed)
}

func TestQuotaCompletion(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		pass  bool
	}{
		{"quota and no death", []string{"0 1 is eating", "All philosophers have eaten enough"}, true},
		{"no quota line", []string{"0 1 is eating"}, false},
		{"death without quota", []string{"0 1 is eating", "800 2 died"}, false},
		{"quota after death", []string{"800 2 died", "All philosophers have eaten enough"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pass, QuotaCompletion(runOf(tt.lines...)).Passed)
		})
	}
}

func TestDeadlock(t *testing.T) {
	run := runOf("0 1 is eating", "0 3 is eating", "200 5 is eating")

	res := Deadlock(run, 5)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diagnostic, "only 3 of 5")

	assert.True(t, Deadlock(runOf("0 1 is eating", "0 2 is eating", "0 3 is eating"), 3).Passed)
}

func TestDeadlock_OnlyCountsDeclaredActors(t *testing.T) {
	run := runOf("0 1 is eating", "0 2 is eating", "0 3 is eating", "0 4 is eating", "0 99 is eating")

	res := Deadlock(run, 5)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diagnostic, "only 4 of 5")
}

func TestDeadlock_NoActorCount(t *testing.T) {
	res := Deadlock(runOf(), 0)
	assert.False(t, res.Passed)
	assert.Equal(t, "no actor count declared", res.Diagnostic)

	assert.False(t, Deadlock(runOf("0 1 is eating"), -1).Passed)
}

func meals(counts map[int]int) *supervisor.RunResult {
	var lines []string
	ts := 0
	for round := 0; ; round++ {
		wrote := false
		for id := 1; id <= len(counts); id++ {
			if counts[id] > round {
				lines = append(lines, event.Event{TimestampMS: uint64(ts), ActorID: id, Message: "is eating"}.String())
				wrote = true
			}
		}
		if !wrote {
			break
		}
		ts += 100
	}
	return runOf(lines...)
}

func TestFairness(t *testing.T) {
	th := DefaultThresholds()

	t.Run("skipped when an actor never ate", func(t *testing.T) {
		res := Fairness(meals(map[int]int{1: 5, 2: 5, 3: 0}), 3, th)
		assert.True(t, res.Passed)
		assert.True(t, res.Skipped)
		assert.Contains(t, res.Diagnostic, "actor 3 never ate")
	})

	t.Run("skipped below the sample threshold", func(t *testing.T) {
		res := Fairness(meals(map[int]int{1: 1, 2: 1, 3: 1}), 3, th)
		assert.True(t, res.Skipped)
	})

	t.Run("flags an actor below half the mean", func(t *testing.T) {
		res := Fairness(meals(map[int]int{1: 1, 2: 5, 3: 5}), 3, th)
		assert.False(t, res.Passed)
		assert.False(t, res.Skipped)
		assert.Contains(t, res.Diagnostic, "1 (1 meals)")
	})

	t.Run("even distribution passes", func(t *testing.T) {
		res := Fairness(meals(map[int]int{1: 4, 2: 4, 3: 3}), 3, th)
		assert.True(t, res.Passed)
		assert.False(t, res.Skipped)
	})

	t.Run("ratio is configurable", func(t *testing.T) {
		strict := Thresholds{FairnessRatio: 0.9}
		assert.False(t, Fairness(meals(map[int]int{1: 4, 2: 4, 3: 3}), 3, strict).Passed)
	})
}

func TestArgumentRejection(t *testing.T) {
	t.Run("error on stdout with non-zero exit", func(t *testing.T) {
		assert.True(t, ArgumentRejection(exitWith(runOf("Error: invalid argument"), 1)).Passed)
	})

	t.Run("error on stderr with non-zero exit", func(t *testing.T) {
		run := exitWith(runOf(), 2)
		run.Stderr = []string{"Error: too few arguments"}
		assert.True(t, ArgumentRejection(run).Passed)
	})

	t.Run("zero exit fails", func(t *testing.T) {
		res := ArgumentRejection(runOf("Error: invalid argument"))
		assert.False(t, res.Passed)
		assert.Contains(t, res.Diagnostic, "exit code 0")
	})

	t.Run("missing message fails", func(t *testing.T) {
		res := ArgumentRejection(exitWith(runOf("usage: philo n die eat sleep"), 1))
		assert.False(t, res.Passed)
		assert.Contains(t, res.Diagnostic, "error message: no")
	})

	t.Run("timed out run fails", func(t *testing.T) {
		res := ArgumentRejection(timedOut(runOf("0 1 is thinking"), "SIGTERM"))
		assert.False(t, res.Passed)
		assert.Contains(t, res.Diagnostic, "SIGTERM")
	})

	t.Run("spawn failure fails", func(t *testing.T) {
		run := &supervisor.RunResult{Failure: &supervisor.SpawnError{Path: "/nope", Reason: "no such file"}}
		assert.False(t, ArgumentRejection(run).Passed)
	})
}

func TestSurvival(t *testing.T) {
	assert.True(t, Survival(timedOut(runOf("0 1 is eating"), "SIGTERM")).Passed)
	assert.True(t, Survival(timedOut(runOf("0 1 is eating"), "SIGKILL")).Passed)

	early := Survival(runOf("0 1 is eating"))
	assert.False(t, early.Passed)
	assert.Contains(t, early.Diagnostic, "stopped before the window closed")

	crashed := runOf("0 1 is eating")
	crashed.ExitCode = nil
	crashed.Signal = "SIGSEGV"
	assert.False(t, Survival(crashed).Passed)

	segv := timedOut(runOf("0 1 is eating"), "SIGTERM")
	segv.Stderr = []string{"Segmentation fault (core dumped)"}
	assert.False(t, Survival(segv).Passed)

	spawn := &supervisor.RunResult{Failure: &supervisor.SpawnError{Path: "/nope", Reason: "not found"}}
	assert.False(t, Survival(spawn).Passed)
}

func TestInvariantChecks(t *testing.T) {
	good := runOf("0 1 is eating", "200 1 is sleeping", "200 2 is eating")
	assert.True(t, MonotonicTimestamps(good).Passed)
	assert.True(t, NoEventsAfterDeath(good).Passed)
	assert.True(t, ActorRange(good, 2).Passed)

	backwards := runOf("200 1 is sleeping", "100 2 is eating")
	res := MonotonicTimestamps(backwards)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diagnostic, "100 2 is eating")

	zombie := runOf("300 1 died", "310 1 is eating", "320 1 is sleeping")
	res = NoEventsAfterDeath(zombie)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diagnostic, "1 (2 events)")

	outOfRange := runOf("0 0 is eating", "0 6 is eating")
	res = ActorRange(outOfRange, 5)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Diagnostic, "0, 6")
}

func TestChecksAreIdempotent(t *testing.T) {
	run := runOf("0 1 has taken a fork", "0 1 is eating", "garbage", "310 2 died")

	all := func() []CheckResult {
		return []CheckResult{
			FormatValidity(run, 5),
			DeathDetected(run),
			DeathTiming(run, 310, 10),
			QuotaCompletion(run),
			Deadlock(run, 2),
			Fairness(run, 2, DefaultThresholds()),
			ArgumentRejection(run),
			Survival(run),
			MonotonicTimestamps(run),
			NoEventsAfterDeath(run),
			ActorRange(run, 2),
		}
	}

	assert.Equal(t, all(), all())
}

func TestThresholdsWithDefaults(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), Thresholds{}.WithDefaults())

	custom := Thresholds{FairnessRatio: 0.7}.WithDefaults()
	assert.Equal(t, 0.7, custom.FairnessRatio)
	assert.Equal(t, 2, custom.MinSampleFactor)
	assert.Equal(t, 5, custom.MaxOffenders)
}
