package audio

import (
	"errors"
	"fmt"
)

// Format constants shared by the codec and the relay.
const (
	SampleRate   = 48_000 // Hz
	Channels     = 2      // interleaved stereo
	FrameSize    = 960    // samples per channel (20 ms)
	FrameSamples = FrameSize * Channels
	MaxFrameSize = 4000 // bytes, upper bound for one encoded Opus packet
)

var ErrLengthMismatch = errors.New("channel lengths differ")

// Interleave merges two channels into L,R,L,R order.
func Interleave(left, right []float32) ([]float32, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("%w: left=%d right=%d", ErrLengthMismatch, len(left), len(right))
	}
	out := make([]float32, len(left)*2)
	for i := range left {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out, nil
}

// Deinterleave splits L,R,L,R samples back into two channels.
func Deinterleave(samples []float32) (left, right []float32, err error) {
	if len(samples)%2 != 0 {
		return nil, nil, fmt.Errorf("%w: odd sample count %d", ErrLengthMismatch, len(samples))
	}
	n := len(samples) / 2
	left = make([]float32, n)
	right = make([]float32, n)
	for i := 0; i < n; i++ {
		left[i] = samples[2*i]
		right[i] = samples[2*i+1]
	}
	return left, right, nil
}

// FloatToPCM16 converts normalized samples to signed 16-bit PCM. Input is
// clamped to [-1, 1] first so out-of-range values saturate instead of wrapping.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 32768)
		} else {
			out[i] = int16(s * 32767)
		}
	}
	return out
}

// PCM16ToFloat converts signed 16-bit PCM to normalized float samples.
func PCM16ToFloat(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// ApplyGain scales samples in place. Clamping happens later in FloatToPCM16.
func ApplyGain(samples []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range samples {
		samples[i] *= gain
	}
}

// SplitFrames cuts interleaved PCM into frames of frameLen samples. The last
// frame is zero-padded so every frame has the same length.
func SplitFrames(pcm []int16, frameLen int) [][]int16 {
	if frameLen <= 0 || len(pcm) == 0 {
		return nil
	}
	frames := make([][]int16, 0, (len(pcm)+frameLen-1)/frameLen)
	for off := 0; off < len(pcm); off += frameLen {
		end := off + frameLen
		if end <= len(pcm) {
			frames = append(frames, pcm[off:end])
			continue
		}
		last := make([]int16, frameLen)
		copy(last, pcm[off:])
		frames = append(frames, last)
	}
	return frames
}
