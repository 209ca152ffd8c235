package output

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ebitengine/oto/v3"

	"github.com/requestify/requestify-go/internal/audio"
)

// Oto plays through the system default output device via the oto library.
// Samples are fed through an io.Pipe into a persistent player; pipe writes
// block until the player drains them, which provides the pacing the engine
// relies on.
type Oto struct {
	log        *slog.Logger
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	ready      bool
}

// NewOto creates an oto-backed output. Open must be called before use.
func NewOto(log *slog.Logger) *Oto {
	if log == nil {
		log = discardLogger
	}
	return &Oto{log: log}
}

// Open initializes the oto context and starts the persistent player.
func (o *Oto) Open(format audio.Format) error {
	if o.ready {
		return errors.New("output already open")
	}
	if err := format.Validate(); err != nil {
		return err
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("creating oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	o.log.Debug("audio output open",
		"backend", BackendOto,
		"sample_rate", format.SampleRate,
		"channels", format.Channels)
	return nil
}

// Write queues samples, blocking until the player consumes them.
func (o *Oto) Write(samples []int16) error {
	if !o.ready {
		return errors.New("output not open")
	}
	if _, err := o.pipeWriter.Write(audio.BytesFromSamples(samples)); err != nil {
		return fmt.Errorf("writing to player: %w", err)
	}
	return nil
}

// Close stops the player and releases the pipe. The oto context itself
// cannot be torn down (one per process), so it is suspended.
func (o *Oto) Close() error {
	if !o.ready {
		return nil
	}
	o.ready = false
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
	}
	if o.player != nil {
		o.player.Close()
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
	}
	o.log.Debug("audio output closed", "backend", BackendOto)
	return nil
}
