// Package engine mixes decoded audio onto an output device. It carries two
// channels: one main slot for queued requests, played one at a time and
// cancellable, plus any number of overlay sources that are mixed on top and
// always run to completion.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/requestify/requestify-go/internal/audio"
	"github.com/requestify/requestify-go/internal/audio/output"
)

var (
	// ErrBusy is returned by PlayMain while another main playback is active.
	ErrBusy = errors.New("main channel busy")
	// ErrStopped is returned when the engine is not running.
	ErrStopped = errors.New("engine stopped")
)

// blockFrames is the mix granularity: 20ms at 48kHz. Cancellation and
// source completion are observed at block boundaries.
const blockFrames = 960

// Result reports how a main playback ended.
type Result struct {
	// Cancelled is set when the playback was cut off by Cancel rather than
	// running to its end.
	Cancelled bool
	// Err is set when the playback failed, e.g. the output device went away.
	Err error
}

// Handle tracks one main playback.
type Handle struct {
	done   chan Result
	cancel chan struct{}

	cancelOnce sync.Once
	doneOnce   sync.Once
}

func newHandle() *Handle {
	return &Handle{
		done:   make(chan Result, 1),
		cancel: make(chan struct{}),
	}
}

// Done delivers exactly one Result when the playback ends.
func (h *Handle) Done() <-chan Result { return h.done }

// Cancel cuts the playback off. Safe to call more than once and after the
// playback has already ended.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancel) })
}

func (h *Handle) finish(r Result) {
	h.doneOnce.Do(func() { h.done <- r })
}

func (h *Handle) cancelled() bool {
	select {
	case <-h.cancel:
		return true
	default:
		return false
	}
}

type source struct {
	samples []int16
	pos     int
	handle  *Handle
}

func (s *source) exhausted() bool { return s.pos >= len(s.samples) }

// Engine owns the output device and the mix loop.
type Engine struct {
	out    output.Output
	format audio.Format
	log    *slog.Logger

	mu       sync.Mutex
	main     *source
	overlays []*source
	running  bool

	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to a discarding logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// New builds an engine writing to out in the given sample format.
func New(out output.Output, format audio.Format, opts ...Option) (*Engine, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		out:    out,
		format: format,
		log:    discardLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start opens the output device and runs the mix loop until ctx is
// cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	if err := e.out.Open(e.format); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("open output: %w", err)
	}
	loopCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.stopLoop = cancel
	e.loopDone = make(chan struct{})
	e.mu.Unlock()

	go e.run(loopCtx)
	return nil
}

// Stop halts the mix loop, fails any active main playback, and closes the
// output device.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel := e.stopLoop
	done := e.loopDone
	e.mu.Unlock()

	cancel()
	<-done
}

// PlayMain starts a buffer on the main channel. Only one main playback can
// be active at a time; the caller waits on the returned handle before
// starting the next.
func (e *Engine) PlayMain(buf *audio.Buffer) (*Handle, error) {
	if buf.Format != e.format {
		return nil, fmt.Errorf("buffer format %dHz/%dch does not match engine format %dHz/%dch",
			buf.Format.SampleRate, buf.Format.Channels, e.format.SampleRate, e.format.Channels)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil, ErrStopped
	}
	if e.main != nil {
		return nil, ErrBusy
	}
	h := newHandle()
	e.main = &source{samples: buf.Samples, handle: h}
	return h, nil
}

// PlayOverlay mixes a buffer on top of whatever is playing. Overlays are
// not tracked and cannot be cancelled; a buffer in the wrong format is
// dropped with a log line rather than failing the caller.
func (e *Engine) PlayOverlay(buf *audio.Buffer) {
	if buf.Format != e.format {
		e.log.Warn("dropping overlay with mismatched format",
			"rate", buf.Format.SampleRate, "channels", buf.Format.Channels)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.overlays = append(e.overlays, &source{samples: buf.Samples})
}

func (e *Engine) run(ctx context.Context) {
	defer e.shutdown()

	blockSamples := blockFrames * e.format.Channels
	mix := make([]int32, blockSamples)
	block := make([]int16, blockSamples)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		e.mixBlock(mix)
		for i, v := range mix {
			block[i] = audio.ClampInt32(v)
		}

		// Write blocks until the device has drained enough of its buffer,
		// which is what paces the loop at real time.
		if err := e.out.Write(block); err != nil {
			e.log.Error("audio output failed", "error", err)
			e.failActive(err)
			return
		}
	}
}

// mixBlock sums one block from every active source into mix, retiring
// sources that finish or are cancelled.
func (e *Engine) mixBlock(mix []int32) {
	for i := range mix {
		mix[i] = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s := e.main; s != nil {
		if s.handle.cancelled() {
			s.handle.finish(Result{Cancelled: true})
			e.main = nil
		} else {
			addBlock(mix, s)
			if s.exhausted() {
				s.handle.finish(Result{})
				e.main = nil
			}
		}
	}

	keep := e.overlays[:0]
	for _, s := range e.overlays {
		addBlock(mix, s)
		if !s.exhausted() {
			keep = append(keep, s)
		}
	}
	e.overlays = keep
}

func addBlock(mix []int32, s *source) {
	n := len(mix)
	if rem := len(s.samples) - s.pos; rem < n {
		n = rem
	}
	for i := 0; i < n; i++ {
		mix[i] += int32(s.samples[s.pos+i])
	}
	s.pos += n
}

// shutdown fails whatever is still active and releases the device. Runs on
// every loop exit path.
func (e *Engine) shutdown() {
	e.failActive(ErrStopped)

	e.mu.Lock()
	e.running = false
	done := e.loopDone
	e.mu.Unlock()

	if err := e.out.Close(); err != nil {
		e.log.Warn("closing audio output", "error", err)
	}
	close(done)
}

func (e *Engine) failActive(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.main != nil {
		e.main.handle.finish(Result{Err: err})
		e.main = nil
	}
	e.overlays = nil
}
