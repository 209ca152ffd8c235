// Package dispatch executes admitted commands. A single control goroutine
// owns the queue and the main playback slot; fetch and synthesis run in
// worker goroutines that report back over channels, so a slow download
// never blocks a stop or skip.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/requestify/requestify-go/internal/audio"
	"github.com/requestify/requestify-go/internal/command"
	"github.com/requestify/requestify-go/internal/engine"
)

// Fetcher resolves a request argument into playable audio.
type Fetcher interface {
	Fetch(ctx context.Context, arg string) (*audio.Buffer, error)
}

// Synthesizer turns text into speech audio.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (*audio.Buffer, error)
}

// MainPlayback is a cancellable playback on the main channel.
type MainPlayback interface {
	Done() <-chan engine.Result
	Cancel()
}

// Engine is the playback surface the dispatcher drives.
type Engine interface {
	PlayMain(*audio.Buffer) (MainPlayback, error)
	PlayOverlay(*audio.Buffer)
}

// WrapEngine adapts the concrete playback engine to the Engine interface.
func WrapEngine(e *engine.Engine) Engine { return wrappedEngine{e} }

type wrappedEngine struct{ e *engine.Engine }

func (w wrappedEngine) PlayMain(buf *audio.Buffer) (MainPlayback, error) {
	h, err := w.e.PlayMain(buf)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (w wrappedEngine) PlayOverlay(buf *audio.Buffer) { w.e.PlayOverlay(buf) }

// Defaults for queue depth and worker deadlines.
const (
	DefaultMaxPending   = 16
	DefaultFetchTimeout = 2 * time.Minute
	DefaultSpeakTimeout = 15 * time.Second

	submitBuffer = 16
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fetchResult struct {
	track *Track
	arg   string
	err   error
}

type speakResult struct {
	buf  *audio.Buffer
	text string
	err  error
}

// Dispatcher runs commands against the queue and the engine.
type Dispatcher struct {
	fetcher Fetcher
	synth   Synthesizer
	engine  Engine
	queue   *Queue
	log     *slog.Logger
	console io.Writer

	maxPending   int
	fetchTimeout time.Duration
	speakTimeout time.Duration

	cmds    chan command.Command
	fetched chan fetchResult
	spoken  chan speakResult
	mainEnd chan engine.Result

	playing MainPlayback
	workers sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithConsole sets where queue listings are printed. Defaults to discard.
func WithConsole(w io.Writer) Option {
	return func(d *Dispatcher) {
		if w != nil {
			d.console = w
		}
	}
}

// WithMaxPending caps the pending queue depth.
func WithMaxPending(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxPending = n
		}
	}
}

// WithFetchTimeout bounds one download and transcode.
func WithFetchTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.fetchTimeout = t }
}

// WithSpeakTimeout bounds one speech synthesis.
func WithSpeakTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.speakTimeout = t }
}

// New builds a dispatcher. Run must be called before commands have effect.
func New(fetcher Fetcher, synth Synthesizer, eng Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		fetcher:      fetcher,
		synth:        synth,
		engine:       eng,
		queue:        NewQueue(),
		log:          discardLogger,
		console:      io.Discard,
		maxPending:   DefaultMaxPending,
		fetchTimeout: DefaultFetchTimeout,
		speakTimeout: DefaultSpeakTimeout,
		cmds:         make(chan command.Command, submitBuffer),
		fetched:      make(chan fetchResult),
		spoken:       make(chan speakResult),
		mainEnd:      make(chan engine.Result),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit hands an admitted command to the control loop. Returns false when
// the loop's inbox is full and the command was dropped.
func (d *Dispatcher) Submit(cmd command.Command) bool {
	select {
	case d.cmds <- cmd:
		return true
	default:
		d.log.Warn("command inbox full, dropping command",
			"kind", cmd.Kind.String(), "user", cmd.Username)
		return false
	}
}

// Run drives the control loop until ctx is cancelled, then waits for
// in-flight workers to wind down.
func (d *Dispatcher) Run(ctx context.Context) {
	defer d.workers.Wait()

	for {
		select {
		case <-ctx.Done():
			if d.playing != nil {
				d.playing.Cancel()
			}
			return
		case cmd := <-d.cmds:
			d.handle(ctx, cmd)
		case res := <-d.fetched:
			d.handleFetched(ctx, res)
		case res := <-d.spoken:
			d.handleSpoken(res)
		case r := <-d.mainEnd:
			d.handleMainEnd(ctx, r)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, cmd command.Command) {
	switch cmd.Kind {
	case command.KindPlay:
		d.handlePlay(ctx, cmd)
	case command.KindTts:
		d.handleTts(ctx, cmd)
	case command.KindStop:
		d.handleStop(cmd)
	case command.KindSkip:
		d.handleSkip(ctx, cmd)
	case command.KindQueue:
		d.handleQueue()
	default:
		d.log.Warn("unhandled command kind", "kind", cmd.Kind.String())
	}
}

func (d *Dispatcher) handlePlay(ctx context.Context, cmd command.Command) {
	if d.queue.PendingLen() >= d.maxPending {
		d.log.Warn("queue full, dropping request",
			"arg", cmd.Argument, "user", cmd.Username)
		return
	}

	d.log.Info("fetching request", "arg", cmd.Argument, "user", cmd.Username)
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		fetchCtx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
		defer cancel()

		buf, err := d.fetcher.Fetch(fetchCtx, cmd.Argument)
		res := fetchResult{arg: cmd.Argument, err: err}
		if err == nil {
			res.track = &Track{
				SourceArgument: cmd.Argument,
				RequestedBy:    cmd.Username,
				Audio:          buf,
				EnqueuedAt:     time.Now(),
			}
		}
		select {
		case d.fetched <- res:
		case <-ctx.Done():
		}
	}()
}

func (d *Dispatcher) handleTts(ctx context.Context, cmd command.Command) {
	d.log.Info("synthesizing speech", "user", cmd.Username)
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		speakCtx, cancel := context.WithTimeout(ctx, d.speakTimeout)
		defer cancel()

		buf, err := d.synth.Speak(speakCtx, cmd.Argument)
		select {
		case d.spoken <- speakResult{buf: buf, text: cmd.Argument, err: err}:
		case <-ctx.Done():
		}
	}()
}

// handleStop drops every pending track and cuts off the main playback.
// Overlays are left alone so speech in flight finishes.
func (d *Dispatcher) handleStop(cmd command.Command) {
	dropped := d.queue.ClearPending()
	d.log.Info("stop", "user", cmd.Username, "dropped", dropped)
	if d.playing != nil {
		d.playing.Cancel()
	}
}

func (d *Dispatcher) handleSkip(ctx context.Context, cmd command.Command) {
	d.log.Info("skip", "user", cmd.Username)
	if d.playing != nil {
		d.playing.Cancel()
		return
	}
	// Nothing playing: a pending track may still be waiting on the slot.
	d.startNext(ctx)
}

func (d *Dispatcher) handleQueue() {
	entries := d.queue.Snapshot()
	if len(entries) == 0 {
		fmt.Fprintln(d.console, "Queue is empty.")
		return
	}
	for _, e := range entries {
		if e.Position == 0 {
			fmt.Fprintf(d.console, "Now playing: %s (requested by %s)\n", e.Argument, e.RequestedBy)
			continue
		}
		fmt.Fprintf(d.console, "  %d. %s (requested by %s)\n", e.Position, e.Argument, e.RequestedBy)
	}
}

func (d *Dispatcher) handleFetched(ctx context.Context, res fetchResult) {
	if res.err != nil {
		d.log.Warn("request failed", "arg", res.arg, "error", res.err)
		return
	}
	d.queue.Add(res.track)
	d.log.Info("request queued", "arg", res.arg, "pending", d.queue.PendingLen())
	d.startNext(ctx)
}

func (d *Dispatcher) handleSpoken(res speakResult) {
	if res.err != nil {
		d.log.Warn("speech synthesis failed", "error", res.err)
		return
	}
	d.engine.PlayOverlay(res.buf)
}

func (d *Dispatcher) handleMainEnd(ctx context.Context, r engine.Result) {
	d.playing = nil
	d.queue.FinishCurrent()
	switch {
	case r.Err != nil:
		d.log.Warn("playback failed", "error", r.Err)
	case r.Cancelled:
		d.log.Info("playback cancelled")
	default:
		d.log.Info("playback finished")
	}
	d.startNext(ctx)
}

// startNext promotes the next pending track when the main slot is free.
func (d *Dispatcher) startNext(ctx context.Context) {
	if d.playing != nil {
		return
	}
	t := d.queue.StartNext()
	if t == nil {
		return
	}

	playback, err := d.engine.PlayMain(t.Audio)
	if err != nil {
		d.log.Warn("starting playback", "arg", t.SourceArgument, "error", err)
		d.queue.FinishCurrent()
		return
	}
	d.playing = playback
	d.log.Info("playing", "arg", t.SourceArgument, "user", t.RequestedBy)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		select {
		case d.mainEnd <- <-playback.Done():
		case <-ctx.Done():
		}
	}()
}
