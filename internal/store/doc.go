// Package store provides SQLite-backed storage for supervised runs.
//
// Each run is stored with its raw stdout and stderr lines and the verdicts
// computed for it. Events and actor states are never stored: they are
// rebuilt by re-parsing the stored lines, so a stored run can be analysed
// again exactly as it was the first time.
//
// # Tables
//
//   - runs: one row per supervised execution, keyed by run id
//   - run_lines, run_stderr: captured output, ordered by seq
//   - verdicts: check results, ordered by seq
//
// All reads order by seq so that results are identical across queries.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
