// Package output abstracts the physical audio sink. Two backends are
// provided: oto (system default device, no enumeration) and malgo
// (miniaudio, with playback device selection by name substring).
//
// The engine mixes all channels itself and writes one interleaved s16
// stream, so the Output contract is a single blocking Write.
package output

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/requestify/requestify-go/internal/audio"
)

// discardLogger is used when callers do not provide a logger.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Output is a single playback device accepting interleaved s16 PCM.
type Output interface {
	// Open initializes the device for the given format. Must be called
	// exactly once before Write.
	Open(format audio.Format) error

	// Write queues samples for playback, blocking while the device's
	// buffer is full. This back-pressure is what paces the engine's mix
	// loop to real time.
	Write(samples []int16) error

	// Close releases the device. Write must not be called afterwards.
	Close() error
}

// Backend names accepted in configuration.
const (
	BackendOto   = "oto"
	BackendMalgo = "malgo"
)

// New creates an output backend by name. deviceSubstring is only honored by
// backends that can enumerate devices; oto always uses the system default.
func New(backend, deviceSubstring string, log *slog.Logger) (Output, error) {
	if log == nil {
		log = discardLogger
	}
	switch backend {
	case BackendOto, "":
		if deviceSubstring != "" {
			log.Warn("oto backend cannot select a device, using system default",
				"device_substring", deviceSubstring)
		}
		return NewOto(log), nil
	case BackendMalgo:
		return NewMalgo(deviceSubstring, log), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}
