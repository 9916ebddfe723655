package audio

import (
	"errors"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
)

func TestInterleaveRoundTrip(t *testing.T) {
	f := func(left []float32, seed int64) bool {
		r := rand.New(rand.NewSource(seed))
		right := make([]float32, len(left))
		for i := range right {
			right[i] = r.Float32()*2 - 1
		}
		inter, err := Interleave(left, right)
		if err != nil || len(inter) != 2*len(left) {
			return false
		}
		l, rr, err := Deinterleave(inter)
		if err != nil {
			return false
		}
		return cmp.Equal(l, left) && cmp.Equal(rr, right)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestInterleaveOrder(t *testing.T) {
	got, err := Interleave([]float32{1, 2, 3}, []float32{-1, -2, -3})
	if err != nil {
		t.Fatalf("Interleave: %v", err)
	}
	want := []float32{1, -1, 2, -2, 3, -3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("interleave mismatch (-want +got):\n%s", diff)
	}
}

func TestInterleaveRejectsUnequalChannels(t *testing.T) {
	if _, err := Interleave([]float32{1}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("want ErrLengthMismatch, got %v", err)
	}
	if _, _, err := Deinterleave([]float32{1, 2, 3}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("want ErrLengthMismatch, got %v", err)
	}
}

func TestPCM16FloatRoundTripWithinOneLSB(t *testing.T) {
	all := make([]int16, 0, 1<<16)
	for v := -32768; v <= 32767; v++ {
		all = append(all, int16(v))
	}
	back := FloatToPCM16(PCM16ToFloat(all))
	for i, v := range all {
		d := int(back[i]) - int(v)
		if d < -1 || d > 1 {
			t.Fatalf("sample %d: want=%d±1 got=%d", i, v, back[i])
		}
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	got := FloatToPCM16([]float32{2, -2, 1, -1, 0})
	want := []int16{32767, -32768, 32767, -32768, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("clamp mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyGain(t *testing.T) {
	s := []float32{0.5, -0.25}
	ApplyGain(s, 2)
	if s[0] != 1 || s[1] != -0.5 {
		t.Fatalf("gain: got=%v", s)
	}
}

func TestSplitFramesPadsLastFrame(t *testing.T) {
	pcm := []int16{1, 2, 3, 4, 5}
	frames := SplitFrames(pcm, 2)
	want := [][]int16{{1, 2}, {3, 4}, {5, 0}}
	if diff := cmp.Diff(want, frames); diff != "" {
		t.Fatalf("frames mismatch (-want +got):\n%s", diff)
	}
	if SplitFrames(nil, FrameSamples) != nil {
		t.Fatalf("expected no frames for empty input")
	}
}
