// Package harness runs conformance suites against a simulator binary.
//
// A suite is a list of scenarios. Each scenario names the arguments to pass
// to the target, an optional time window, and the checks to evaluate over
// the captured run:
//
//	name: philo
//	thresholds:
//	  fairness_ratio: 0.5
//	scenarios:
//	  - name: format
//	    description: output follows the event grammar
//	    args: ["5", "800", "200", "200"]
//	    timeout_ms: 3000
//	    checks:
//	      - type: format
//	  - name: death
//	    args: ["4", "310", "200", "100"]
//	    checks:
//	      - type: death_timing
//	        expected_ms: 310
//	        tolerance_ms: 10
//
// Suites load from YAML or CUE; CUE files are unified with an embedded
// #Suite schema before decoding.
//
// # Check Types
//
//   - format: every line matches the event grammar or is the quota line
//   - death_detected, death_timing: a death is reported near expected_ms
//   - resource_before_death: exactly count fork events precede the death
//   - quota_completion: the quota line appears and nobody dies
//   - no_deadlock, fairness: every actor eats, and nobody far below the mean
//   - argument_rejection: non-zero exit with an "Error" line
//   - survival: still running when the window closes, no crash
//   - monotonic_timestamps, no_events_after_death, actor_range: stream invariants
//
// Scenarios run strictly one after another. A target that cannot be
// started fails its scenario; the runner moves on to the next one.
package harness
