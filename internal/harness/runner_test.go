package harness

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/supervisor"
	"github.com/roach88/philoprobe/internal/testutil"
	"github.com/roach88/philoprobe/internal/tracker"
)

// stubExecutor returns canned runs keyed by the joined argument list.
// Unknown argument lists behave like a missing binary.
type stubExecutor struct {
	mu       sync.Mutex
	runs     map[string]*supervisor.RunResult
	calls    [][]string
	timeouts []time.Duration
	onRun    func()
}

func (s *stubExecutor) Run(_ context.Context, path string, args []string, timeout time.Duration) *supervisor.RunResult {
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.timeouts = append(s.timeouts, timeout)
	canned, ok := s.runs[strings.Join(args, " ")]
	s.mu.Unlock()

	if s.onRun != nil {
		s.onRun()
	}
	if !ok {
		return &supervisor.RunResult{
			RunID:   "missing",
			Path:    path,
			Args:    args,
			Lines:   []string{},
			Events:  []event.Event{},
			Failure: &supervisor.SpawnError{Path: path, Reason: "no such file or directory"},
		}
	}
	run := *canned
	run.Path = path
	run.Args = args
	return &run
}

func cannedRun(code int, lines ...string) *supervisor.RunResult {
	events := []event.Event{}
	for _, l := range lines {
		if e, ok := event.Parse(l); ok {
			events = append(events, e)
		}
	}
	return &supervisor.RunResult{
		RunID:    "canned",
		ExitCode: &code,
		Lines:    lines,
		Events:   events,
		Actors:   tracker.Replay(events),
	}
}

func mealLines(counts ...int) []string {
	var lines []string
	for round, ts := 0, 0; ; round, ts = round+1, ts+100 {
		wrote := false
		for i, c := range counts {
			if c > round {
				lines = append(lines, event.Event{TimestampMS: uint64(ts), ActorID: i + 1, Message: "is eating"}.String())
				wrote = true
			}
		}
		if !wrote {
			return lines
		}
	}
}

func goldenSuite() (*Suite, *stubExecutor) {
	unfair := cannedRun(0, mealLines(1, 5, 5)...)
	unfair.ExitCode = nil
	unfair.TimedOut = true
	unfair.Signal = "SIGTERM"

	exec := &stubExecutor{runs: map[string]*supervisor.RunResult{
		"4 310 200 100": cannedRun(0,
			"0 1 has taken a fork",
			"0 1 has taken a fork",
			"0 1 is eating",
			"200 1 is sleeping",
			"312 2 died",
		),
		"3 800 200 200": unfair,
		"":              cannedRun(1, "Error: missing arguments"),
		"5 0 200 200":   cannedRun(0),
	}}

	suite := &Suite{
		Name: "golden",
		Scenarios: []Scenario{
			{
				Name:        "death",
				Description: "dies on time",
				Args:        []string{"4", "310", "200", "100"},
				Checks: []CheckSpec{
					{Type: analysis.CheckDeathDetected},
					{Type: analysis.CheckDeathTiming},
					{Type: analysis.CheckFairness},
				},
			},
			{
				Name:      "fairness",
				Args:      []string{"3", "800", "200", "200"},
				TimeoutMS: 5000,
				Checks: []CheckSpec{
					{Type: analysis.CheckDeadlock},
					{Type: analysis.CheckFairness},
				},
			},
			{
				Name:        "errors",
				Description: "bad args rejected",
				TimeoutMS:   1000,
				Variants: []Variant{
					{Name: "none", Args: []string{}},
					{Name: "zero", Args: []string{"5", "0", "200", "200"}},
				},
				Checks: []CheckSpec{{Type: analysis.CheckArgumentRejection}},
			},
			{
				Name:   "missing",
				Args:   []string{"9"},
				Checks: []CheckSpec{{Type: analysis.CheckFormat}},
			},
		},
	}
	return suite, exec
}

func TestRunner_ScorecardGolden(t *testing.T) {
	suite, exec := goldenSuite()

	report := NewRunner(exec).Run(context.Background(), "/bin/philo", suite)

	AssertReportGolden(t, "scorecard", report)
}

func TestRunner_ScoreBoard(t *testing.T) {
	suite, exec := goldenSuite()

	report := NewRunner(exec).Run(context.Background(), "/bin/philo", suite)

	assert.Equal(t, ScoreBoard{
		Scenarios:     4,
		Passed:        1,
		Failed:        3,
		ChecksPassed:  4,
		ChecksFailed:  3,
		ChecksSkipped: 1,
	}, report.Score)
	assert.False(t, report.Score.AllPassed())

	require.Len(t, report.Scenarios, 4)
	errs := report.Scenarios[2]
	require.Len(t, errs.Runs, 2)
	assert.Equal(t, "none", errs.Runs[0].Variant)
	assert.Equal(t, "zero/argument_rejection", errs.Checks[1].Name)

	missing := report.Scenarios[3]
	require.Len(t, missing.Checks, 1)
	assert.Equal(t, CheckSpawn, missing.Checks[0].Name)
	assert.Contains(t, missing.Runs[0].Failure, "no such file")
}

func TestRunner_SequentialWithTimeouts(t *testing.T) {
	suite, exec := goldenSuite()

	NewRunner(exec).Run(context.Background(), "/bin/philo", suite)

	require.Len(t, exec.calls, 5)
	assert.Equal(t, []string{"4", "310", "200", "100"}, exec.calls[0])
	assert.Equal(t, []string{"9"}, exec.calls[4])
	assert.Equal(t, []time.Duration{0, 5 * time.Second, time.Second, time.Second, 0}, exec.timeouts)
}

func TestRunner_Phases(t *testing.T) {
	suite, exec := goldenSuite()

	var r *Runner
	var scored []Phase
	r = NewRunner(exec, WithScenarioHook(func(ScenarioResult) {
		p, _ := r.Phase()
		scored = append(scored, p)
	}))

	phase, _ := r.Phase()
	assert.Equal(t, PhaseIdle, phase)

	type seen struct {
		phase Phase
		index int
	}
	var during []seen
	exec.onRun = func() {
		p, i := r.Phase()
		during = append(during, seen{p, i})
	}
	r.Run(context.Background(), "/bin/philo", suite)

	assert.Equal(t, []seen{
		{PhaseRunning, 0},
		{PhaseRunning, 1},
		{PhaseRunning, 2},
		{PhaseRunning, 2},
		{PhaseRunning, 3},
	}, during)
	assert.Equal(t, []Phase{PhaseScored, PhaseScored, PhaseScored, PhaseScored}, scored)

	phase, idx := r.Phase()
	assert.Equal(t, PhaseDone, phase)
	assert.Equal(t, 3, idx)
	assert.Equal(t, "done", phase.String())
}

type memRecorder struct {
	names  []string
	checks [][]analysis.CheckResult
}

func (m *memRecorder) RecordRun(_ context.Context, scenario string, _ *supervisor.RunResult, checks []analysis.CheckResult) error {
	m.names = append(m.names, scenario)
	m.checks = append(m.checks, checks)
	return nil
}

func TestRunner_RecordsEveryRun(t *testing.T) {
	suite, exec := goldenSuite()
	rec := &memRecorder{}

	NewRunner(exec, WithRecorder(rec)).Run(context.Background(), "/bin/philo", suite)

	assert.Equal(t, []string{"death", "fairness", "errors/none", "errors/zero", "missing"}, rec.names)
	assert.Len(t, rec.checks[0], 3)
}

func TestRunner_CancelledContextFailsRemainingScenarios(t *testing.T) {
	suite, exec := goldenSuite()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewRunner(exec).Run(ctx, "/bin/philo", suite)

	assert.Empty(t, exec.calls)
	assert.Equal(t, 4, report.Score.Failed)
	assert.Equal(t, "cancelled", report.Scenarios[0].Checks[0].Name)
}

func TestRunner_DefaultSuiteAgainstFakeSimulator(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the full default suite against a scripted simulator")
	}

	target := testutil.FakeSimulator(t)
	sup := supervisor.New(supervisor.Config{}, nil, testutil.NewSequentialIDs(""))

	report := NewRunner(sup).Run(context.Background(), target, DefaultSuite())

	for _, sc := range report.Scenarios {
		for _, c := range sc.Checks {
			assert.True(t, c.Passed, "%s/%s: %s", sc.Name, c.Name, c.Diagnostic)
		}
	}
	assert.Equal(t, 7, report.Score.Scenarios)
	assert.True(t, report.Score.AllPassed())
}
