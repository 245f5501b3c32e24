// Package collector drains a subprocess's standard output while it runs.
//
// A Collector owns exactly one background goroutine that reads the stream
// line by line, appends every line to an ordered log, parses it with package
// event, and feeds parsed events to a tracker. It is the only reader of the
// stream, so lines are never lost or interleaved.
//
// Readers call Snapshot (or Lines/Events) at any time. Snapshots are copies:
// they observe a prefix of the true sequence and never a partially appended
// line.
//
// Shutdown:
//
//	c := collector.New(pipe)
//	c.Start()
//	// ... process exits ...
//	err := c.Stop(200 * time.Millisecond)
//	final := c.Snapshot()
//
// Stop lets the goroutine drain whatever is still buffered up to end of
// stream. When the stream does not close within the grace window (an orphaned
// grandchild still holds the write end), the read end is closed to unblock the
// reader. Once Stop returns, the log no longer changes.
package collector
