// Package audio defines the PCM types exchanged between the acquisition and
// synthesis pipelines, the playback engine, and the output backends.
//
// All audio in the system is interleaved signed 16-bit PCM. A Buffer carries
// its own Format so producers working at other rates can be resampled before
// they reach the output device.
package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Format describes the layout of a PCM sample stream.
type Format struct {
	SampleRate int // frames per second
	Channels   int // interleaved channels per frame
}

// DefaultFormat is the device format every output backend is opened with.
// 48 kHz stereo matches what the transcode pipeline emits.
var DefaultFormat = Format{SampleRate: 48000, Channels: 2}

// Validate reports whether the format is usable.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	return nil
}

// BytesPerFrame returns the byte size of one interleaved frame.
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// FrameCount returns how many frames a sample slice of the given length holds.
func (f Format) FrameCount(samples int) int {
	return samples / f.Channels
}

// Buffer is a fully decoded waveform ready for playback.
type Buffer struct {
	Samples []int16
	Format  Format
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.Format.SampleRate == 0 || b.Format.Channels == 0 {
		return 0
	}
	frames := len(b.Samples) / b.Format.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.Format.SampleRate)
}

// SamplesFromBytes converts little-endian s16 PCM bytes to samples.
// A trailing odd byte is dropped.
func SamplesFromBytes(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// BytesFromSamples converts samples to little-endian s16 PCM bytes.
func BytesFromSamples(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// ClampInt32 clamps an int32 accumulator value to the int16 range. Used by
// the engine's additive mixer and the synthesis gain stage.
func ClampInt32(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
