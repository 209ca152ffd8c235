package output

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/requestify/requestify-go/internal/audio"
)

// ringCapacityFrames is the device-side buffer depth in frames. Roughly
// 200ms at 48kHz; audio already handed to the ring keeps playing after a
// cancel, so this bounds the perceived cancellation latency.
const ringCapacityFrames = 9600

// Malgo plays through a miniaudio device. Unlike the oto backend it can
// enumerate playback devices and pick the first whose name contains a
// configured substring, falling back to the system default.
type Malgo struct {
	log       *slog.Logger
	substring string

	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	ring     *byteRing
	ready    bool
}

// NewMalgo creates a malgo-backed output. deviceSubstring may be empty, in
// which case the system default device is used.
func NewMalgo(deviceSubstring string, log *slog.Logger) *Malgo {
	if log == nil {
		log = discardLogger
	}
	return &Malgo{log: log, substring: deviceSubstring}
}

// Open initializes the miniaudio context, resolves the target device and
// starts playback. The device callback drains an internal ring buffer;
// Write blocks while that buffer is full.
func (m *Malgo) Open(format audio.Format) error {
	if m.ready {
		return errors.New("output already open")
	}
	if err := format.Validate(); err != nil {
		return err
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.log.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return fmt.Errorf("initializing miniaudio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	if id, name, ok := m.findDevice(mctx); ok {
		cfg.Playback.DeviceID = id.Pointer()
		m.log.Info("matched output device", "name", name, "substring", m.substring)
	} else if m.substring != "" {
		m.log.Warn("no output device matched, using system default",
			"substring", m.substring)
	}

	ring := newByteRing(ringCapacityFrames * format.BytesPerFrame())
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			ring.read(out)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("initializing playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("starting playback device: %w", err)
	}

	m.malgoCtx = mctx
	m.device = device
	m.ring = ring
	m.ready = true

	m.log.Debug("audio output open",
		"backend", BackendMalgo,
		"sample_rate", format.SampleRate,
		"channels", format.Channels)
	return nil
}

// findDevice scans playback devices for the configured substring
// (case-insensitive). Returns ok=false when no substring is set or nothing
// matches.
func (m *Malgo) findDevice(mctx *malgo.AllocatedContext) (malgo.DeviceID, string, bool) {
	if m.substring == "" {
		return malgo.DeviceID{}, "", false
	}
	infos, err := mctx.Devices(malgo.Playback)
	if err != nil {
		m.log.Warn("enumerating playback devices failed", "error", err)
		return malgo.DeviceID{}, "", false
	}
	needle := strings.ToLower(m.substring)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info.ID, info.Name(), true
		}
	}
	return malgo.DeviceID{}, "", false
}

// Write queues samples, blocking while the ring buffer is full.
func (m *Malgo) Write(samples []int16) error {
	if !m.ready {
		return errors.New("output not open")
	}
	if err := m.ring.write(audio.BytesFromSamples(samples)); err != nil {
		return fmt.Errorf("writing to device buffer: %w", err)
	}
	return nil
}

// Close stops the device and tears down the miniaudio context. Any Write
// blocked on the ring buffer is released with an error.
func (m *Malgo) Close() error {
	if !m.ready {
		return nil
	}
	m.ready = false
	m.ring.close()
	if m.device != nil {
		m.device.Uninit()
	}
	if m.malgoCtx != nil {
		_ = m.malgoCtx.Uninit()
		m.malgoCtx.Free()
	}
	m.log.Debug("audio output closed", "backend", BackendMalgo)
	return nil
}

// byteRing is a fixed-capacity circular byte buffer. The device callback
// reads from it on the audio thread; the engine writes to it and blocks
// when full.
type byteRing struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	buf      []byte
	readPos  int
	writePos int
	count    int
	closed   bool
}

var errRingClosed = errors.New("device buffer closed")

func newByteRing(capacity int) *byteRing {
	r := &byteRing{buf: make([]byte, capacity)}
	r.notFull = sync.NewCond(&r.mu)
	return r
}

// write copies all of data into the ring, blocking until space frees up.
func (r *byteRing) write(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(data) > 0 {
		for r.count == len(r.buf) && !r.closed {
			r.notFull.Wait()
		}
		if r.closed {
			return errRingClosed
		}
		n := len(r.buf) - r.count
		if n > len(data) {
			n = len(data)
		}
		for i := 0; i < n; i++ {
			r.buf[r.writePos] = data[i]
			r.writePos = (r.writePos + 1) % len(r.buf)
		}
		r.count += n
		data = data[n:]
	}
	return nil
}

// read fills out from the ring, zero-filling on underrun. Called from the
// device's audio thread; never blocks.
func (r *byteRing) read(out []byte) {
	r.mu.Lock()
	n := len(out)
	if n > r.count {
		n = r.count
	}
	for i := 0; i < n; i++ {
		out[i] = r.buf[r.readPos]
		r.readPos = (r.readPos + 1) % len(r.buf)
	}
	r.count -= n
	r.mu.Unlock()
	r.notFull.Broadcast()

	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

func (r *byteRing) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.notFull.Broadcast()
}
