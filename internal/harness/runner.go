package harness

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/supervisor"
)

// Executor runs the target once. *supervisor.Supervisor implements it.
type Executor interface {
	Run(ctx context.Context, path string, args []string, timeout time.Duration) *supervisor.RunResult
}

// Recorder persists a scored run. Recording errors are logged and never
// fail a scenario.
type Recorder interface {
	RecordRun(ctx context.Context, scenario string, run *supervisor.RunResult, checks []analysis.CheckResult) error
}

// Runner executes suites scenario by scenario.
type Runner struct {
	exec     Executor
	logger   *slog.Logger
	recorder Recorder
	onScored func(ScenarioResult)

	mu      sync.Mutex
	phase   Phase
	current int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder persists every run after it is scored.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithScenarioHook is called after each scenario is scored.
func WithScenarioHook(fn func(ScenarioResult)) Option {
	return func(r *Runner) { r.onScored = fn }
}

// NewRunner creates a Runner around exec.
func NewRunner(exec Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:   exec,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Phase returns the current phase and the index of the scenario it refers
// to (the last one scored, once Done).
func (r *Runner) Phase() (Phase, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase, r.current
}

func (r *Runner) setPhase(p Phase, i int) {
	r.mu.Lock()
	r.phase, r.current = p, i
	r.mu.Unlock()
}

// Run executes every scenario of suite against target, one process at a
// time, and returns the scorecard. It never returns an error: spawn
// failures and cancellation show up as failed checks.
func (r *Runner) Run(ctx context.Context, target string, suite *Suite) *Report {
	report := &Report{
		Suite:     suite.Name,
		Target:    target,
		Scenarios: make([]ScenarioResult, 0, len(suite.Scenarios)),
	}

	for i := range suite.Scenarios {
		sc := &suite.Scenarios[i]
		r.setPhase(PhaseRunning, i)

		var res ScenarioResult
		if err := ctx.Err(); err != nil {
			res = ScenarioResult{
				Name:        sc.Name,
				Description: sc.Description,
				Checks: []analysis.CheckResult{{
					Name:       "cancelled",
					Diagnostic: err.Error(),
				}},
				Runs: []RunSummary{},
			}
		} else {
			res = r.runScenario(ctx, target, sc, suite.Thresholds)
		}

		report.Scenarios = append(report.Scenarios, res)
		report.Score.Record(res)
		r.setPhase(PhaseScored, i)

		r.logger.Info("scenario scored",
			"scenario", sc.Name,
			"passed", res.Passed,
			"checks", len(res.Checks),
		)
		if r.onScored != nil {
			r.onScored(res)
		}
	}

	r.setPhase(PhaseDone, max(len(suite.Scenarios)-1, 0))
	return report
}

func (r *Runner) runScenario(ctx context.Context, target string, sc *Scenario, th analysis.Thresholds) ScenarioResult {
	res := ScenarioResult{
		Name:        sc.Name,
		Description: sc.Description,
		Passed:      true,
		Checks:      []analysis.CheckResult{},
		Runs:        []RunSummary{},
	}

	for _, v := range sc.Runs() {
		logger := r.logger.With("scenario", sc.Name)
		if v.Name != "" {
			logger = logger.With("variant", v.Name)
		}

		run := r.exec.Run(ctx, target, v.Args, sc.Timeout())
		checks := EvaluateVariant(sc, v, run, th)

		for _, c := range checks {
			if !c.Passed {
				res.Passed = false
				logger.Debug("check failed", "check", c.Name, "diagnostic", c.Diagnostic)
			}
		}
		res.Checks = append(res.Checks, checks...)
		res.Runs = append(res.Runs, summarize(v.Name, run))

		if r.recorder != nil {
			name := RecordName(sc.Name, v.Name)
			if err := r.recorder.RecordRun(context.WithoutCancel(ctx), name, run, checks); err != nil {
				logger.Warn("record run", "run_id", run.RunID, "error", err)
			}
		}
	}
	return res
}
