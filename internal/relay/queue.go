package relay

import "time"

// Chunk is one unit of device audio: PCM16LE stereo bytes at 48 kHz.
type Chunk struct {
	PCM      []byte
	Received time.Time
}

// Queue is a FIFO of chunks waiting for playback. It is owned by the loop
// and not safe for concurrent use.
type Queue struct {
	// MaxDepth bounds the queue; 0 leaves it unbounded. When full, Push
	// drops the oldest chunk.
	MaxDepth int

	items []Chunk
}

// Push appends c. When the queue was full the evicted head is returned with
// ok set.
func (q *Queue) Push(c Chunk) (dropped Chunk, ok bool) {
	if q.MaxDepth > 0 && len(q.items) >= q.MaxDepth {
		dropped = q.items[0]
		q.items[0] = Chunk{}
		q.items = q.items[1:]
		ok = true
	}
	q.items = append(q.items, c)
	return dropped, ok
}

// Pop removes and returns the oldest chunk.
func (q *Queue) Pop() (Chunk, bool) {
	if len(q.items) == 0 {
		return Chunk{}, false
	}
	c := q.items[0]
	q.items[0] = Chunk{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return c, true
}

func (q *Queue) Len() int { return len(q.items) }

// Clear empties the queue and returns how many chunks were discarded.
func (q *Queue) Clear() int {
	n := len(q.items)
	q.items = nil
	return n
}
