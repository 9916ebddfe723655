package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

var ErrMalformedPayload = errors.New("malformed audio payload")

// EncodeTransport wraps raw bytes as standard base64 text.
func EncodeTransport(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeTransport reverses EncodeTransport.
func DecodeTransport(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return b, nil
}
