package device

import (
	"math"
	"sync/atomic"

	"github.com/discord-voice-bridge/internal/audio"
)

const MaxVolume = 2.0

// Volume is the device-side playback gain. It only changes what the device
// renders; the audio on the wire is untouched.
type Volume struct {
	bits atomic.Uint32
}

func NewVolume(gain float32) *Volume {
	v := &Volume{}
	v.Set(gain)
	return v
}

func (v *Volume) Get() float32 { return math.Float32frombits(v.bits.Load()) }

// Set clamps gain to [0, MaxVolume].
func (v *Volume) Set(gain float32) {
	switch {
	case gain < 0 || gain != gain:
		gain = 0
	case gain > MaxVolume:
		gain = MaxVolume
	}
	v.bits.Store(math.Float32bits(gain))
}

// Apply returns pcm (PCM16LE stereo) scaled by the current gain.
func (v *Volume) Apply(pcm []byte) ([]byte, error) {
	gain := v.Get()
	if gain == 1 {
		return pcm, nil
	}
	samples, err := audio.BytesToPCM16(pcm)
	if err != nil {
		return nil, err
	}
	left, right, err := audio.Deinterleave(audio.PCM16ToFloat(samples))
	if err != nil {
		return nil, err
	}
	audio.ApplyGain(left, gain)
	audio.ApplyGain(right, gain)
	mixed, err := audio.Interleave(left, right)
	if err != nil {
		return nil, err
	}
	return audio.PCM16ToBytes(audio.FloatToPCM16(mixed)), nil
}
