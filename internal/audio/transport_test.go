package audio

import (
	"bytes"
	"errors"
	"testing"
	"testing/quick"
)

func TestTransportRoundTrip(t *testing.T) {
	f := func(b []byte) bool {
		got, err := DecodeTransport(EncodeTransport(b))
		return err == nil && bytes.Equal(got, b)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestTransportEdgeCases(t *testing.T) {
	for _, b := range [][]byte{{}, {0}, {0, 0, 0, 0}, {1, 0, 2, 0, 0}} {
		got, err := DecodeTransport(EncodeTransport(b))
		if err != nil {
			t.Fatalf("DecodeTransport(%v): %v", b, err)
		}
		if !bytes.Equal(got, b) {
			t.Fatalf("round trip: want=%v got=%v", b, got)
		}
	}
}

func TestDecodeTransportMalformed(t *testing.T) {
	if _, err := DecodeTransport("not base64!!"); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("want ErrMalformedPayload, got %v", err)
	}
}

func TestPCM16Bytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	b := PCM16ToBytes(samples)
	if len(b) != 10 {
		t.Fatalf("byte length: want=10 got=%d", len(b))
	}
	if b[2] != 0x01 || b[3] != 0x00 {
		t.Fatalf("expected little-endian encoding, got %v", b[2:4])
	}
	back, err := BytesToPCM16(b)
	if err != nil {
		t.Fatalf("BytesToPCM16: %v", err)
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Fatalf("sample %d: want=%d got=%d", i, samples[i], back[i])
		}
	}
	if _, err := BytesToPCM16([]byte{1, 2, 3}); !errors.Is(err, ErrOddLength) {
		t.Fatalf("want ErrOddLength, got %v", err)
	}
}
