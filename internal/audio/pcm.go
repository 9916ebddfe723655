package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrOddLength = errors.New("pcm16 byte length must be even")

// PCM16ToBytes packs samples as little-endian 16-bit integers.
func PCM16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// BytesToPCM16 unpacks little-endian 16-bit samples.
func BytesToPCM16(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrOddLength, len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out, nil
}
