// Package supervisor runs a simulator binary under a wall-clock watchdog and
// turns its output into a RunResult.
//
// Each Run spawns the target in its own process group with stdout connected
// to a pipe drained by a collector.Collector, and stderr captured into a
// separate buffer that is never parsed for events. While the process runs the
// supervisor polls it at a fixed interval. When the deadline passes it sends
// SIGTERM to the group, waits a short grace window, and sends SIGKILL if the
// group is still alive.
//
// Once the process is confirmed stopped the collector is stopped and joined,
// and only then are the lines and events snapshotted. Actor states are rebuilt
// by replaying the snapshotted events through a fresh tracker.
//
// Run never returns an error. A binary that cannot be started yields a
// RunResult whose Failure is set, with no exit code and no events.
package supervisor
