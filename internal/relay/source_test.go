package relay

import (
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
)

// queuedPost collects tasks instead of running them so a test can decide
// when the loop catches up.
type queuedPost struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queuedPost) post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *queuedPost) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *queuedPost) runAll() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func TestSpeakingStartRestartsFinishedStreamBeforeEnded(t *testing.T) {
	conn := newFakeConn(ChannelTarget{GuildID: "g1", ChannelID: "c1"})
	q := &queuedPost{}
	s := &source{
		selfID:  "bot",
		silence: DefaultSilenceTimeout,
		conn:    conn,
		codec:   &fakeCodec{},
		clock:   clock.NewMock(),
		post:    q.post,
		deliver: func(string, string) {},
		streams: make(map[string]*speakerStream),
	}

	s.speakingStart("alice")
	first := conn.sub("alice")
	first.Close()
	// The pump has exited and queued ended, which has not run yet.
	eventually(t, func() bool { return q.len() == 1 }, "ended posted")

	s.speakingStart("alice")
	if got := len(conn.subscriptions()); got != 2 {
		t.Fatalf("subscriptions: want=2 got=%d", got)
	}
	second := s.streams["alice"]
	if second == nil || second.sub == Subscription(first) {
		t.Fatalf("new burst did not get its own stream")
	}

	// The stale ended task must not remove the new stream.
	q.runAll()
	if s.streams["alice"] != second {
		t.Fatalf("stale ended removed the restarted stream")
	}
	s.closeAll()
}
