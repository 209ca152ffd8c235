// Package resample converts PCM buffers between sample rates using linear
// interpolation. Quality is adequate for speech and short clips; anything
// that needs fidelity should be transcoded at the source instead.
package resample

import "github.com/requestify/requestify-go/internal/audio"

// Buffer converts a whole decoded buffer to the target format. Channel
// layout conversion is limited to mono-to-stereo duplication; downmixing is
// not supported.
func Buffer(in *audio.Buffer, target audio.Format) *audio.Buffer {
	if in == nil {
		return nil
	}
	out := in
	if in.Format.Channels == 1 && target.Channels == 2 {
		out = monoToStereo(out)
	}
	if out.Format.SampleRate != target.SampleRate {
		out = convertRate(out, target.SampleRate)
	}
	return out
}

func monoToStereo(in *audio.Buffer) *audio.Buffer {
	samples := make([]int16, len(in.Samples)*2)
	for i, s := range in.Samples {
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return &audio.Buffer{
		Samples: samples,
		Format:  audio.Format{SampleRate: in.Format.SampleRate, Channels: 2},
	}
}

// convertRate resamples with linear interpolation between adjacent frames.
func convertRate(in *audio.Buffer, rate int) *audio.Buffer {
	channels := in.Format.Channels
	inFrames := len(in.Samples) / channels
	if inFrames == 0 {
		return &audio.Buffer{Format: audio.Format{SampleRate: rate, Channels: channels}}
	}

	ratio := float64(in.Format.SampleRate) / float64(rate)
	outFrames := int(float64(inFrames) / ratio)
	samples := make([]int16, outFrames*channels)

	for frame := 0; frame < outFrames; frame++ {
		pos := float64(frame) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		next := idx + 1
		if next >= inFrames {
			next = inFrames - 1
		}

		for ch := 0; ch < channels; ch++ {
			a := float64(in.Samples[idx*channels+ch])
			b := float64(in.Samples[next*channels+ch])
			samples[frame*channels+ch] = int16(a*(1.0-frac) + b*frac)
		}
	}

	return &audio.Buffer{
		Samples: samples,
		Format:  audio.Format{SampleRate: rate, Channels: channels},
	}
}
