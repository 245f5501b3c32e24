package collector

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/philoprobe/internal/event"
	"github.com/roach88/philoprobe/internal/tracker"
)

const readBufferSize = 64 * 1024

// ErrDrainTimeout is returned by Stop when the reader goroutine could not be
// joined even after the stream was closed. Lines arriving afterwards are
// discarded.
var ErrDrainTimeout = errors.New("collector: reader did not stop after stream close")

// LineSink receives every captured line in order, from the reader goroutine.
type LineSink interface {
	WriteLine(seq int, line string)
}

// Option configures a Collector.
type Option func(*Collector)

// WithSink mirrors every captured line to s.
func WithSink(s LineSink) Option {
	return func(c *Collector) { c.sink = s }
}

// WithLogger sets the logger used for read errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// Snapshot is a consistent copy of everything collected so far.
type Snapshot struct {
	Lines  []string
	Events []event.Event
	Actors map[int]tracker.ActorState
}

// Collector reads lines from a stream in a background goroutine.
type Collector struct {
	r      io.Reader
	sink   LineSink
	logger *slog.Logger

	mu        sync.Mutex
	lines     []string
	events    []event.Event
	tracker   *tracker.Tracker
	abandoned bool
	readErr   error

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// New creates a Collector for r. Call Start to begin reading.
func New(r io.Reader, opts ...Option) *Collector {
	c := &Collector{
		r:       r,
		lines:   make([]string, 0, 256),
		events:  make([]event.Event, 0, 256),
		tracker: tracker.New(),
		done:    make(chan struct{}),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the reader goroutine. Calling Start more than once has no
// further effect.
func (c *Collector) Start() {
	c.startOnce.Do(func() {
		go c.collect()
	})
}

// Done is closed when the reader goroutine has exited.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) collect() {
	defer close(c.done)

	br := bufio.NewReaderSize(c.r, readBufferSize)
	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			c.append(strings.TrimRight(raw, "\r\n"))
		}
		if err != nil {
			if !isClosedStream(err) {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
				c.logger.Warn("output read failed", "error", err)
			}
			return
		}
	}
}

func (c *Collector) append(line string) {
	c.mu.Lock()
	if c.abandoned {
		c.mu.Unlock()
		return
	}
	seq := len(c.lines)
	c.lines = append(c.lines, line)
	if e, ok := event.Parse(line); ok {
		c.events = append(c.events, e)
		c.tracker.Apply(e)
	}
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.WriteLine(seq, line)
	}
}

// isClosedStream reports whether err only says the stream ended or was
// closed under the reader.
func isClosedStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, fs.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// Stop waits for the reader goroutine to finish draining the stream.
//
// If the stream is still open after grace, the reader is closed (when it
// implements io.Closer) and Stop waits up to grace again. It returns the read
// error, if any, or ErrDrainTimeout when the goroutine could not be joined.
// Stop must not be called before Start.
func (c *Collector) Stop(grace time.Duration) error {
	var err error
	c.stopOnce.Do(func() {
		err = c.stop(grace)
	})
	return err
}

func (c *Collector) stop(grace time.Duration) error {
	if c.waitDone(grace) {
		return c.Err()
	}

	if closer, ok := c.r.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			c.logger.Debug("closing output stream", "error", cerr)
		}
	}
	if c.waitDone(grace) {
		return c.Err()
	}

	c.mu.Lock()
	c.abandoned = true
	c.mu.Unlock()
	return fmt.Errorf("stop after %s: %w", 2*grace, ErrDrainTimeout)
}

func (c *Collector) waitDone(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}

// Err returns the first non-EOF read error.
func (c *Collector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Lines returns a copy of the raw line log.
func (c *Collector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Events returns a copy of the parsed events.
func (c *Collector) Events() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]event.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Snapshot returns lines, events and actor states captured at one instant.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Lines:  make([]string, len(c.lines)),
		Events: make([]event.Event, len(c.events)),
		Actors: c.tracker.Snapshot(),
	}
	copy(s.Lines, c.lines)
	copy(s.Events, c.events)
	return s
}
