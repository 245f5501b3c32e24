package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/philoprobe/internal/analysis"
	"github.com/roach88/philoprobe/internal/supervisor"
)

// Suite is an ordered set of scenarios plus shared tuning.
type Suite struct {
	Name       string              `yaml:"name" json:"name"`
	Thresholds analysis.Thresholds `yaml:"thresholds" json:"thresholds"`
	Supervisor SupervisorSettings  `yaml:"supervisor" json:"supervisor"`
	Scenarios  []Scenario          `yaml:"scenarios" json:"scenarios"`
}

// SupervisorSettings overrides watchdog timings for every run in a suite.
type SupervisorSettings struct {
	PollIntervalMS int `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	GraceWindowMS  int `yaml:"grace_window_ms" json:"grace_window_ms"`
}

// Config converts the settings into a supervisor.Config. Zero values keep
// the supervisor defaults.
func (s SupervisorSettings) Config() supervisor.Config {
	return supervisor.Config{
		PollInterval: time.Duration(s.PollIntervalMS) * time.Millisecond,
		GraceWindow:  time.Duration(s.GraceWindowMS) * time.Millisecond,
	}
}

// Scenario is one supervised invocation of the target and the checks that
// judge it.
type Scenario struct {
	// Name uniquely identifies the scenario within its suite.
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Args are passed to the target verbatim.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Variants run the same checks against several argument lists. When
	// present, Args is ignored and the scenario passes only if every
	// variant passes.
	Variants []Variant `yaml:"variants,omitempty" json:"variants,omitempty"`

	// TimeoutMS bounds the run; zero waits for the target to exit.
	TimeoutMS int `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`

	// Actors is the declared actor count. Zero means "take it from Args[0]".
	Actors int `yaml:"actors,omitempty" json:"actors,omitempty"`

	Checks []CheckSpec `yaml:"checks" json:"checks"`
}

// Variant is a named argument list.
type Variant struct {
	Name string   `yaml:"name" json:"name"`
	Args []string `yaml:"args" json:"args"`
}

// CheckSpec selects an analysis check and its parameters.
type CheckSpec struct {
	Type string `yaml:"type" json:"type"`

	// ExpectedMS is the expected death time for death_timing. Zero means
	// the time_to_die argument (Args[1]).
	ExpectedMS int `yaml:"expected_ms,omitempty" json:"expected_ms,omitempty"`
	// ToleranceMS for death_timing; zero picks 10ms, or 30ms for one actor.
	ToleranceMS int `yaml:"tolerance_ms,omitempty" json:"tolerance_ms,omitempty"`
	// Count for resource_before_death; zero means 1.
	Count int `yaml:"count,omitempty" json:"count,omitempty"`
}

var knownChecks = map[string]bool{
	analysis.CheckFormat:              true,
	analysis.CheckDeathDetected:       true,
	analysis.CheckDeathTiming:         true,
	analysis.CheckResourceBeforeDeath: true,
	analysis.CheckQuotaCompletion:     true,
	analysis.CheckDeadlock:            true,
	analysis.CheckFairness:            true,
	analysis.CheckArgumentRejection:   true,
	analysis.CheckSurvival:            true,
	analysis.CheckMonotonic:           true,
	analysis.CheckNoEventsAfterDeath:  true,
	analysis.CheckActorRange:          true,
}

// Timeout returns the scenario window as a duration.
func (s *Scenario) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// DeclaredActors returns Actors, or the first argument when it is a
// positive integer, or zero.
func (s *Scenario) DeclaredActors() int {
	return declaredActors(s.Actors, s.Args)
}

func declaredActors(actors int, args []string) int {
	if actors > 0 {
		return actors
	}
	if len(args) == 0 {
		return 0
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Runs expands the scenario into the argument lists to execute.
func (s *Scenario) Runs() []Variant {
	if len(s.Variants) > 0 {
		return s.Variants
	}
	return []Variant{{Args: s.Args}}
}

// SuiteError reports a suite file that cannot be used.
type SuiteError struct {
	Path  string // file, if loaded from disk
	Field string // offending field path, if known
	Msg   string
	Err   error
}

func (e *SuiteError) Error() string {
	var b strings.Builder
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *SuiteError) Unwrap() error {
	return e.Err
}

// IsSuiteError returns true if err is or wraps a *SuiteError.
func IsSuiteError(err error) bool {
	var se *SuiteError
	return errors.As(err, &se)
}

// LoadSuite reads a suite file. Files ending in .cue are decoded through
// the CUE schema; anything else is parsed as YAML.
func LoadSuite(p string) (*Suite, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &SuiteError{Path: p, Msg: "read suite file", Err: err}
	}

	var suite *Suite
	if filepath.Ext(p) == ".cue" {
		suite, err = ParseSuiteCUE(data, filepath.Base(p))
	} else {
		suite, err = ParseSuiteYAML(data)
	}
	if err != nil {
		var se *SuiteError
		if errors.As(err, &se) && se.Path == "" {
			se.Path = p
		}
		return nil, err
	}
	return suite, nil
}

// ParseSuiteYAML decodes and validates a YAML suite. Unknown fields are
// rejected so that typos surface instead of silently disabling checks.
func ParseSuiteYAML(data []byte) (*Suite, error) {
	var suite Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&suite); err != nil {
		return nil, &SuiteError{Msg: "parse YAML", Err: err}
	}
	if err := ValidateSuite(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// ValidateSuite checks that a suite is runnable.
func ValidateSuite(s *Suite) error {
	if len(s.Scenarios) == 0 {
		return &SuiteError{Field: "scenarios", Msg: "at least one scenario is required"}
	}

	seen := make(map[string]bool, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		field := fmt.Sprintf("scenarios[%d]", i)

		if sc.Name == "" {
			return &SuiteError{Field: field, Msg: "name is required"}
		}
		if seen[sc.Name] {
			return &SuiteError{Field: field, Msg: fmt.Sprintf("duplicate scenario name %q", sc.Name)}
		}
		seen[sc.Name] = true

		if sc.TimeoutMS < 0 {
			return &SuiteError{Field: field + ".timeout_ms", Msg: "must be non-negative"}
		}
		if sc.Actors < 0 {
			return &SuiteError{Field: field + ".actors", Msg: "must be non-negative"}
		}
		for j, v := range sc.Variants {
			if v.Name == "" {
				return &SuiteError{Field: fmt.Sprintf("%s.variants[%d]", field, j), Msg: "name is required"}
			}
		}
		if len(sc.Checks) == 0 {
			return &SuiteError{Field: field + ".checks", Msg: "at least one check is required"}
		}
		if needsActorCount(sc.Checks) {
			for _, v := range sc.Runs() {
				if declaredActors(sc.Actors, v.Args) == 0 {
					f := field + ".actors"
					if v.Name != "" {
						f = fmt.Sprintf("%s.variants[%s]", field, v.Name)
					}
					return &SuiteError{Field: f, Msg: "actor count checks need actors or a numeric first argument"}
				}
			}
		}
		for j, c := range sc.Checks {
			cf := fmt.Sprintf("%s.checks[%d]", field, j)
			if !knownChecks[c.Type] {
				return &SuiteError{Field: cf, Msg: fmt.Sprintf("unknown check type %q", c.Type)}
			}
			if c.ExpectedMS < 0 || c.ToleranceMS < 0 || c.Count < 0 {
				return &SuiteError{Field: cf, Msg: "numeric parameters must be non-negative"}
			}
		}
	}

	th := s.Thresholds
	if th.FairnessRatio < 0 || th.FairnessRatio > 1 {
		return &SuiteError{Field: "thresholds.fairness_ratio", Msg: "must be within 0..1"}
	}
	if th.MinSampleFactor < 0 || th.MaxOffenders < 0 {
		return &SuiteError{Field: "thresholds", Msg: "must be non-negative"}
	}
	if s.Supervisor.PollIntervalMS < 0 || s.Supervisor.GraceWindowMS < 0 {
		return &SuiteError{Field: "supervisor", Msg: "timings must be non-negative"}
	}
	return nil
}

// needsActorCount reports whether any check is judged against the number
// of actors.
func needsActorCount(checks []CheckSpec) bool {
	for _, c := range checks {
		switch c.Type {
		case analysis.CheckDeadlock, analysis.CheckFairness, analysis.CheckActorRange:
			return true
		}
	}
	return false
}

// Filter returns a copy of the suite holding only the scenarios whose name
// matches the glob pattern. An empty pattern keeps everything.
func (s *Suite) Filter(pattern string) (*Suite, error) {
	out := *s
	if pattern == "" {
		return &out, nil
	}
	out.Scenarios = nil
	for _, sc := range s.Scenarios {
		ok, err := path.Match(pattern, sc.Name)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", pattern, err)
		}
		if ok {
			out.Scenarios = append(out.Scenarios, sc)
		}
	}
	return &out, nil
}

// RecordName is the name a run is stored under: the scenario name, plus
// "/variant" for named variants.
func RecordName(scenario, variant string) string {
	if variant == "" {
		return scenario
	}
	return scenario + "/" + variant
}

// Lookup resolves a stored record name back to its scenario and variant.
func (s *Suite) Lookup(record string) (*Scenario, Variant, bool) {
	name, variant, _ := strings.Cut(record, "/")
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if sc.Name != name {
			continue
		}
		if variant == "" {
			if len(sc.Variants) > 0 {
				return nil, Variant{}, false
			}
			return sc, Variant{Args: sc.Args}, true
		}
		for _, v := range sc.Variants {
			if v.Name == variant {
				return sc, v, true
			}
		}
		return nil, Variant{}, false
	}
	return nil, Variant{}, false
}
