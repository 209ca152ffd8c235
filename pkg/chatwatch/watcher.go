package chatwatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/requestify/requestify-go/internal/chatparse"
	"github.com/requestify/requestify-go/internal/tailer"
	"github.com/requestify/requestify-go/pkg/chatwatch/event"
)

// watcherErrBuffer is the buffer size for the error channel.
// A small buffer prevents error loss during brief moments when the consumer
// is busy processing events, while keeping memory usage minimal.
const watcherErrBuffer = 16

// Watcher monitors a game console log file and emits parsed events.
type Watcher struct {
	cfg  watchConfig // internal configuration (immutable after creation)
	path string
	log  *slog.Logger

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc // cancel func to stop the goroutine
	doneCh   chan struct{}      // signals when goroutine has exited
	watching bool               // true if Watch() has been called
}

// discardLogger is used when no logger is provided.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewWatcher creates a watcher using functional options.
// Validates options. Does NOT start goroutines (cheap to call).
//
// Example:
//
//	watcher, err := chatwatch.NewWatcher(
//	    chatwatch.WithPath("/path/to/console.log"),
//	    chatwatch.WithIncludeTypes(event.Chat),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	events, errs, err := watcher.Watch(ctx)
func NewWatcher(opts ...WatchOption) (*Watcher, error) {
	cfg := applyWatchOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	return &Watcher{
		cfg:  *cfg, // copy to ensure immutability
		path: cfg.path,
		log:  log,
	}, nil
}

// Watch creates a watcher with the given options and starts it. The
// returned channels close when ctx is cancelled or the tail fails fatally.
// For synchronous shutdown, use NewWatcher and Watcher.Watch directly.
func Watch(ctx context.Context, opts ...WatchOption) (<-chan event.Event, <-chan error, error) {
	w, err := NewWatcher(opts...)
	if err != nil {
		return nil, nil, err
	}
	return w.Watch(ctx)
}

// Watch starts watching and returns channels.
// Starts internal goroutines here.
// When ctx is cancelled, channels are closed automatically.
// Both channels close on ctx.Done() or fatal error.
// Watch can only be called once per Watcher instance.
//
// Returns ErrWatcherClosed if the watcher has been closed.
// Returns ErrAlreadyWatching if Watch() has already been called.
func (w *Watcher) Watch(ctx context.Context) (<-chan event.Event, <-chan error, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, nil, ErrWatcherClosed
	}
	if w.watching {
		return nil, nil, ErrAlreadyWatching
	}
	w.watching = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	eventCh := make(chan event.Event)
	errCh := make(chan error, watcherErrBuffer)

	go w.run(ctx, eventCh, errCh)

	return eventCh, errCh, nil
}

// Close stops the watcher and releases resources.
// Safe to call multiple times.
// Blocks until the goroutine has exited.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true

	if w.cancel != nil {
		w.cancel()
	}
	doneCh := w.doneCh
	w.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	return nil
}

func (w *Watcher) run(ctx context.Context, eventCh chan<- event.Event, errCh chan<- error) {
	defer close(w.doneCh) // Signal that goroutine has exited
	defer close(eventCh)
	defer close(errCh)

	cfg := tailer.DefaultConfig()
	cfg.FromStart = w.cfg.fromStart
	cfg.Poll = w.cfg.poll

	t, err := tailer.New(ctx, w.path, cfg)
	if err != nil {
		sendError(ctx, errCh, &WatchError{Op: WatchOpTail, Path: w.path, Err: err})
		return
	}
	defer func() { _ = t.Stop() }()
	w.log.Debug("started tailing", "path", w.path, "from_start", cfg.FromStart)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-t.Lines():
			if !ok {
				return
			}
			w.processLine(ctx, line, eventCh, errCh)
		case err, ok := <-t.Errors():
			if !ok {
				return
			}
			sendError(ctx, errCh, &WatchError{Op: WatchOpTail, Path: w.path, Err: err})
		}
	}
}

func (w *Watcher) processLine(ctx context.Context, line string, eventCh chan<- event.Event, errCh chan<- error) {
	ev, err := chatparse.Parse(line, time.Now())
	if err != nil {
		sendError(ctx, errCh, &ParseError{Line: line, Err: err})
		return
	}
	if ev == nil {
		return // Not a recognized event
	}

	if !w.cfg.filter.Allows(ev.Type) {
		return
	}
	if w.cfg.includeRawLine {
		ev.RawLine = line
	}

	select {
	case eventCh <- *ev:
	case <-ctx.Done():
	}
}

// sendError sends an error to the error channel.
// With a buffered channel, errors are only dropped if the buffer is full.
// The context case ensures we don't block during shutdown.
func sendError(ctx context.Context, errCh chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
		// Don't block during shutdown
	default:
		// Drop error only if buffer is full (rare with buffer size 16)
	}
}
