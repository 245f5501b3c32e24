package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/roach88/philoprobe/internal/collector"
	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/tracker"
)

// Default timings.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultGraceWindow  = 200 * time.Millisecond
	DefaultDrainGrace   = time.Second
	DefaultWaitDelay    = time.Second
)

// Config holds watchdog timings and optional hooks.
type Config struct {
	// PollInterval is how often the watchdog checks the running process.
	PollInterval time.Duration
	// GraceWindow is how long SIGTERM gets before SIGKILL follows.
	GraceWindow time.Duration
	// DrainGrace bounds how long the collector may keep draining stdout
	// after the process stopped.
	DrainGrace time.Duration
	// WaitDelay bounds stderr draining after the process group stopped.
	WaitDelay time.Duration

	// TranscriptDir, when set, receives one JSONL file of stdout per run.
	TranscriptDir string

	// OnPoll is called from the watchdog loop with a live snapshot.
	OnPoll func(runID string, snap collector.Snapshot)
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = DefaultGraceWindow
	}
	if c.DrainGrace <= 0 {
		c.DrainGrace = DefaultDrainGrace
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}
	return c
}

// Supervisor runs one target process at a time.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	ids    IDGenerator
	now    func() time.Time
}

// New creates a Supervisor. A nil logger discards logs; a nil generator
// uses UUIDv7 run ids.
func New(cfg Config, logger *slog.Logger, ids IDGenerator) *Supervisor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		logger: logger,
		ids:    ids,
		now:    time.Now,
	}
}

// Run executes path with args and supervises it until it exits, the timeout
// elapses, or ctx is cancelled. A zero timeout waits for natural exit; the
// caller must only use that for targets expected to terminate.
func (s *Supervisor) Run(ctx context.Context, path string, args []string, timeout time.Duration) *RunResult {
	res := &RunResult{
		RunID:  s.ids.Generate(),
		Path:   path,
		Args:   append([]string{}, args...),
		Lines:  []string{},
		Events: []event.Event{},
		Actors: map[int]tracker.ActorState{},
		Stderr: []string{},
	}
	logger := s.logger.With("run_id", res.RunID, "path", path)

	pr, pw, err := os.Pipe()
	if err != nil {
		res.Failure = newSpawnError(path, fmt.Errorf("create stdout pipe: %w", err))
		return res
	}
	defer pr.Close()

	// Stderr gets its own pipe so cmd.Wait returns as soon as the target
	// exits, even when a descendant still holds stderr open.
	er, ew, err := os.Pipe()
	if err != nil {
		pw.Close()
		res.Failure = newSpawnError(path, fmt.Errorf("create stderr pipe: %w", err))
		return res
	}
	defer er.Close()

	cmd := exec.Command(path, args...)
	cmd.Stdout = pw
	cmd.Stderr = ew
	setProcessGroup(cmd)

	res.StartedAt = s.now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		ew.Close()
		res.Failure = newSpawnError(path, err)
		logger.Warn("spawn failed", "error", err)
		return res
	}
	// The child owns the write ends now; EOF arrives when it and its
	// descendants close them.
	pw.Close()
	ew.Close()

	stderr := &lineBuffer{}
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		_, _ = io.Copy(stderr, er)
	}()

	opts := []collector.Option{collector.WithLogger(logger)}
	transcript, closeTranscript := s.openTranscript(res.RunID, logger)
	if transcript != nil {
		opts = append(opts, collector.WithSink(transcript))
	}
	defer closeTranscript()

	col := collector.New(pr, opts...)
	col.Start()

	logger = logger.With("pid", cmd.Process.Pid)
	logger.Debug("process started", "args", args, "timeout", timeout)

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	timedOut, waitErr := s.watch(ctx, res.RunID, cmd, waitCh, timeout, col, logger)
	res.TimedOut = timedOut
	if waitErr != nil {
		logger.Debug("process wait", "error", waitErr)
	}

	// Descendants that outlive the target keep its output open; they are
	// not part of the run.
	if !closed(col.Done()) || !closed(stderrDone) {
		if err := killGroup(cmd); err == nil {
			logger.Debug("killed leftover group members holding output")
		}
	}

	if err := col.Stop(s.cfg.DrainGrace); err != nil {
		logger.Warn("output collector did not stop cleanly", "error", err)
	}
	s.drainStderr(er, stderrDone, logger)

	snap := col.Snapshot()
	res.Lines = snap.Lines
	res.Events = snap.Events
	res.Actors = tracker.Replay(snap.Events)
	res.Stderr = stderr.Lines()
	res.ExitCode, res.Signal = exitStatus(cmd.ProcessState)
	res.Duration = s.now().Sub(res.StartedAt)

	logger.Info("run finished",
		"lines", len(res.Lines),
		"events", len(res.Events),
		"timed_out", res.TimedOut,
		"signal", res.Signal,
		"duration", res.Duration,
	)
	return res
}

// watch blocks until the process exits, applying the deadline and context
// cancellation. It reports whether the deadline triggered termination, along
// with the result of cmd.Wait.
func (s *Supervisor) watch(
	ctx context.Context,
	runID string,
	cmd *exec.Cmd,
	waitCh <-chan error,
	timeout time.Duration,
	col *collector.Collector,
	logger *slog.Logger,
) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-waitCh:
			return false, err
		case <-deadline:
			logger.Debug("deadline reached, terminating", "timeout", timeout)
			return true, s.terminate(cmd, waitCh, logger)
		case <-ctx.Done():
			logger.Warn("run cancelled, terminating", "error", ctx.Err())
			return false, s.terminate(cmd, waitCh, logger)
		case <-ticker.C:
			if s.cfg.OnPoll != nil {
				s.cfg.OnPoll(runID, col.Snapshot())
			}
		}
	}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// drainStderr waits up to WaitDelay for the stderr copier to reach EOF, then
// closes the read end under it.
func (s *Supervisor) drainStderr(r io.Closer, done <-chan struct{}, logger *slog.Logger) {
	timer := time.NewTimer(s.cfg.WaitDelay)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
	}
	logger.Warn("stderr still open after exit, closing", "wait_delay", s.cfg.WaitDelay)
	_ = r.Close()
	<-done
}

// terminate sends SIGTERM to the process group, then SIGKILL if the group
// is still alive after the grace window. It returns the cmd.Wait result.
func (s *Supervisor) terminate(cmd *exec.Cmd, waitCh <-chan error, logger *slog.Logger) error {
	if err := interruptGroup(cmd); err != nil {
		logger.Debug("interrupt failed", "error", err)
	}

	timer := time.NewTimer(s.cfg.GraceWindow)
	defer timer.Stop()
	select {
	case err := <-waitCh:
		return err
	case <-timer.C:
	}

	logger.Debug("grace window elapsed, killing", "grace", s.cfg.GraceWindow)
	if err := killGroup(cmd); err != nil {
		logger.Debug("kill failed", "error", err)
	}
	return <-waitCh
}

func (s *Supervisor) openTranscript(runID string, logger *slog.Logger) (*collector.JSONLTranscript, func()) {
	if s.cfg.TranscriptDir == "" {
		return nil, func() {}
	}
	if err := os.MkdirAll(s.cfg.TranscriptDir, 0o755); err != nil {
		logger.Warn("create transcript dir", "error", err)
		return nil, func() {}
	}
	path := filepath.Join(s.cfg.TranscriptDir, runID+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		logger.Warn("create transcript file", "error", err)
		return nil, func() {}
	}
	return collector.NewJSONLTranscript(f), func() {
		if err := f.Close(); err != nil {
			logger.Warn("close transcript", "path", path, "error", err)
		}
	}
}
