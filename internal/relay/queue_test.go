package relay

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func chunkOf(b byte) Chunk { return Chunk{PCM: []byte{b}} }

func drain(q *Queue) []byte {
	var out []byte
	for {
		c, ok := q.Pop()
		if !ok {
			return out
		}
		out = append(out, c.PCM[0])
	}
}

func TestQueueFIFO(t *testing.T) {
	var q Queue
	for b := byte(1); b <= 4; b++ {
		if _, dropped := q.Push(chunkOf(b)); dropped {
			t.Fatalf("unbounded queue dropped a chunk")
		}
	}
	if q.Len() != 4 {
		t.Fatalf("len: want=4 got=%d", q.Len())
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, drain(&q)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("Pop on empty queue reported a chunk")
	}
}

func TestQueueBoundDropsOldest(t *testing.T) {
	q := Queue{MaxDepth: 2}
	q.Push(chunkOf(1))
	q.Push(chunkOf(2))
	dropped, ok := q.Push(chunkOf(3))
	if !ok || dropped.PCM[0] != 1 {
		t.Fatalf("want chunk 1 dropped, got ok=%v chunk=%v", ok, dropped.PCM)
	}
	if diff := cmp.Diff([]byte{2, 3}, drain(&q)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestQueueClear(t *testing.T) {
	var q Queue
	q.Push(chunkOf(1))
	q.Push(chunkOf(2))
	if n := q.Clear(); n != 2 {
		t.Fatalf("cleared: want=2 got=%d", n)
	}
	if q.Len() != 0 {
		t.Fatalf("len after clear: want=0 got=%d", q.Len())
	}
}
