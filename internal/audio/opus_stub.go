//go:build !opus
// +build !opus

package audio

// Builds without libopus get constructors that always fail. Build with
// `-tags opus` to link the real codec.

type OpusEncoder struct{}

func NewOpusEncoder() (*OpusEncoder, error) { return nil, ErrCodecUnavailable }

func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) { return nil, ErrCodecUnavailable }

type OpusDecoder struct{}

func NewOpusDecoder() (*OpusDecoder, error) { return nil, ErrCodecUnavailable }

func (d *OpusDecoder) Decode(frame []byte) ([]int16, error) { return nil, ErrCodecUnavailable }

func (d *OpusDecoder) Close() error { return nil }
