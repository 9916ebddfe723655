package relay

import "github.com/discord-voice-bridge/internal/audio"

type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

type Decoder interface {
	Decode(frame []byte) ([]int16, error)
	Close() error
}

// Codec builds the Opus encoder for a session's sink and one decoder per
// speaker stream.
type Codec interface {
	NewEncoder() (Encoder, error)
	NewDecoder() (Decoder, error)
}

// OpusCodec is the libopus-backed Codec.
type OpusCodec struct{}

func (OpusCodec) NewEncoder() (Encoder, error) {
	enc, err := audio.NewOpusEncoder()
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (OpusCodec) NewDecoder() (Decoder, error) {
	dec, err := audio.NewOpusDecoder()
	if err != nil {
		return nil, err
	}
	return dec, nil
}
