package relay

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/discord-voice-bridge/internal/audio"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/metrics"
)

// speakerStream is one speaking burst from one member of the channel.
type speakerStream struct {
	speakerID string
	sub       Subscription
	opened    time.Time
	// finished is set by the pump before it posts ended.
	finished atomic.Bool
}

// source turns speaking activity into per-speaker decode pipelines. Its
// methods run on the loop; each stream decodes on its own goroutine.
type source struct {
	selfID  string
	silence time.Duration
	conn    VoiceConn
	codec   Codec
	clock   clock.Clock
	metrics *metrics.Metrics

	post    func(func()) bool
	deliver func(speakerID, payload string)

	streams map[string]*speakerStream
	closed  bool
}

func (s *source) speakingStart(speakerID string) {
	if s.closed || speakerID == "" || speakerID == s.selfID {
		return
	}
	if st, open := s.streams[speakerID]; open {
		if !st.finished.Load() {
			return
		}
		// The previous burst is over but its ended task is still queued.
		s.ended(st)
	}

	dec, err := s.codec.NewDecoder()
	if err != nil {
		logging.Warnw("cannot decode speaker audio", "user.id", speakerID, "error", err)
		return
	}
	sub, err := s.conn.Subscribe(speakerID, s.silence)
	if err != nil {
		_ = dec.Close()
		logging.Warnw("subscribe to speaker failed", "user.id", speakerID, "error", err)
		return
	}

	st := &speakerStream{speakerID: speakerID, sub: sub, opened: s.clock.Now()}
	s.streams[speakerID] = st
	s.metrics.RecordStreamOpened()
	logging.Debugw("speaker stream opened", "user.id", speakerID)

	go s.pump(st, dec)
}

// pump decodes until the subscription ends, then releases the decoder.
func (s *source) pump(st *speakerStream, dec Decoder) {
	defer func() {
		if err := dec.Close(); err != nil {
			logging.Debugw("decoder close", "user.id", st.speakerID, "error", err)
		}
		st.finished.Store(true)
		s.post(func() { s.ended(st) })
	}()

	for frame := range st.sub.Frames() {
		pcm, err := dec.Decode(frame)
		if err != nil {
			logging.Debugw("opus decode failed", "user.id", st.speakerID, "error", err)
			continue
		}
		payload := audio.EncodeTransport(audio.PCM16ToBytes(pcm))
		if !s.post(func() { s.forward(st, payload) }) {
			st.sub.Close()
		}
	}
}

func (s *source) forward(st *speakerStream, payload string) {
	if s.closed || s.streams[st.speakerID] != st {
		s.metrics.RecordAudioDiscarded("stale")
		return
	}
	s.deliver(st.speakerID, payload)
}

func (s *source) ended(st *speakerStream) {
	if s.streams[st.speakerID] != st {
		return
	}
	delete(s.streams, st.speakerID)
	s.metrics.RecordStreamClosed(s.clock.Since(st.opened).Seconds())
	logging.Debugw("speaker stream closed", "user.id", st.speakerID)
}

// closeAll ends every open stream. The source accepts no new streams after.
func (s *source) closeAll() {
	s.closed = true
	for id, st := range s.streams {
		st.sub.Close()
		delete(s.streams, id)
		s.metrics.RecordStreamClosed(s.clock.Since(st.opened).Seconds())
	}
}
