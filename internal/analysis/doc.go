// Package analysis turns a finished run into pass/fail verdicts.
//
// Every check is a pure function of a *supervisor.RunResult: running the
// same check twice over the same result yields the same CheckResult. The
// fairness check is a heuristic signal (an actor eating less than a
// configurable fraction of the mean), not a proof of starvation; callers
// should treat a fairness failure as a prompt to look closer.
package analysis
