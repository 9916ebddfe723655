//go:build opus
// +build opus

package audio

import (
	"fmt"

	"github.com/hraban/opus"
)

// OpusEncoder turns interleaved stereo PCM frames into Opus packets.
type OpusEncoder struct {
	enc *opus.Encoder
	buf []byte
}

// NewOpusEncoder returns an encoder configured for Discord voice.
func NewOpusEncoder() (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return &OpusEncoder{enc: enc, buf: make([]byte, MaxFrameSize)}, nil
}

// Encode encodes exactly one frame of FrameSamples interleaved samples.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != FrameSamples {
		return nil, fmt.Errorf("opus encode: frame has %d samples, want %d", len(pcm), FrameSamples)
	}
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}
	out := make([]byte, n)
	copy(out, e.buf[:n])
	return out, nil
}

// OpusDecoder turns Opus packets back into interleaved stereo PCM.
type OpusDecoder struct {
	dec *opus.Decoder
	pcm []int16
}

// NewOpusDecoder returns a decoder configured for Discord voice.
func NewOpusDecoder() (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	// 120 ms is the longest packet Opus allows.
	return &OpusDecoder{dec: dec, pcm: make([]int16, FrameSamples*6)}, nil
}

// Decode decodes one packet. The returned slice is freshly allocated.
func (d *OpusDecoder) Decode(frame []byte) ([]int16, error) {
	if d.dec == nil {
		return nil, ErrCodecClosed
	}
	n, err := d.dec.Decode(frame, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	samples := make([]int16, n*Channels)
	copy(samples, d.pcm[:n*Channels])
	return samples, nil
}

// Close drops the decoder state. Decode fails afterwards.
func (d *OpusDecoder) Close() error {
	d.dec = nil
	d.pcm = nil
	return nil
}
