package relay

import (
	"errors"
	"fmt"

	"github.com/discord-voice-bridge/internal/audio"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/metrics"
)

var errEmptyChunk = errors.New("chunk has no samples")

// sink plays device audio into the voice channel, one chunk at a time, in
// arrival order. All methods run on the loop.
type sink struct {
	queue   Queue
	player  PlaybackUnit
	encoder Encoder
	metrics *metrics.Metrics

	// playing is set while a chunk is in flight on the player.
	playing bool
}

func newSink(player PlaybackUnit, encoder Encoder, maxDepth int, m *metrics.Metrics) *sink {
	return &sink{
		queue:   Queue{MaxDepth: maxDepth},
		player:  player,
		encoder: encoder,
		metrics: m,
	}
}

func (s *sink) enqueue(c Chunk) {
	if _, dropped := s.queue.Push(c); dropped {
		s.metrics.RecordChunkDropped("overflow")
		logging.Debugw("outbound queue full, dropped oldest chunk", "max_depth", s.queue.MaxDepth)
	}
	s.metrics.RecordChunkEnqueued(s.queue.Len())
	if !s.playing {
		s.playNext()
	}
}

// playNext starts the head of the queue. A chunk that cannot be played is
// dropped and the next one is tried straight away.
func (s *sink) playNext() {
	for {
		c, ok := s.queue.Pop()
		if !ok {
			s.playing = false
			s.metrics.SetQueueDepth(0)
			return
		}
		if err := s.play(c); err != nil {
			s.metrics.RecordPlaybackFailure()
			logging.Warnw("dropping outbound chunk", "error", err, "bytes", len(c.PCM))
			continue
		}
		s.playing = true
		s.metrics.RecordChunkPlayed(s.queue.Len())
		return
	}
}

func (s *sink) play(c Chunk) error {
	frames, err := s.transcode(c.PCM)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	if err := s.player.Play(frames); err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, err)
	}
	return nil
}

func (s *sink) transcode(pcm []byte) ([][]byte, error) {
	if s.encoder == nil {
		return nil, audio.ErrCodecUnavailable
	}
	samples, err := audio.BytesToPCM16(pcm)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errEmptyChunk
	}
	pcmFrames := audio.SplitFrames(samples, audio.FrameSamples)
	out := make([][]byte, 0, len(pcmFrames))
	for _, f := range pcmFrames {
		packet, err := s.encoder.Encode(f)
		if err != nil {
			return nil, err
		}
		out = append(out, packet)
	}
	return out, nil
}

// handleIdle runs when the player finished the in-flight chunk.
func (s *sink) handleIdle() {
	if !s.playing {
		return
	}
	s.playing = false
	s.playNext()
}

// close discards whatever is still queued.
func (s *sink) close() {
	if n := s.queue.Clear(); n > 0 {
		logging.Debugw("discarded queued chunks on teardown", "count", n)
		for i := 0; i < n; i++ {
			s.metrics.RecordChunkDropped("teardown")
		}
	}
	s.playing = false
	s.metrics.SetQueueDepth(0)
}
