package discord

import (
	"errors"
	"sync"
	"time"

	"github.com/discord-voice-bridge/internal/logging"
)

var (
	ErrPlayerBusy       = errors.New("player is already playing")
	ErrConnectionClosed = errors.New("voice connection closed")
	ErrVoiceSendTimeout = errors.New("voice connection send timeout")
)

// DefaultFrameTimeout bounds how long a single frame may wait for the voice
// connection to accept it.
const DefaultFrameTimeout = time.Second

// Player writes Opus frames to a voice connection's send channel, one batch
// at a time, and reports when it goes idle.
type Player struct {
	send         chan<- []byte
	speak        func(bool) error
	frameTimeout time.Duration

	mu       sync.Mutex
	busy     bool
	speaking bool
	idle     func()
	closed   bool
	done     chan struct{}
}

// NewPlayer returns a Player writing to send. speak toggles the speaking
// indicator and may be nil.
func NewPlayer(send chan<- []byte, speak func(bool) error) *Player {
	return &Player{
		send:         send,
		speak:        speak,
		frameTimeout: DefaultFrameTimeout,
		done:         make(chan struct{}),
	}
}

func (p *Player) OnIdle(cb func()) {
	p.mu.Lock()
	p.idle = cb
	p.mu.Unlock()
}

// Play starts streaming frames and returns immediately.
func (p *Player) Play(frames [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.send == nil {
		return ErrConnectionClosed
	}
	if p.busy {
		return ErrPlayerBusy
	}
	p.busy = true
	if !p.speaking && p.speak != nil {
		if err := p.speak(true); err != nil {
			logging.Debugw("set speaking failed", "error", err)
		} else {
			p.speaking = true
		}
	}
	go p.stream(frames)
	return nil
}

func (p *Player) stream(frames [][]byte) {
	err := p.writeFrames(frames)
	if err != nil && !errors.Is(err, ErrConnectionClosed) {
		logging.Warnw("voice playback interrupted", "error", err, "frames", len(frames))
	}

	p.mu.Lock()
	p.busy = false
	cb := p.idle
	closed := p.closed
	p.mu.Unlock()

	if cb != nil && !closed {
		cb()
	}
}

func (p *Player) writeFrames(frames [][]byte) error {
	for _, frame := range frames {
		timer := time.NewTimer(p.frameTimeout)
		select {
		case p.send <- frame:
			timer.Stop()
		case <-p.done:
			timer.Stop()
			return ErrConnectionClosed
		case <-timer.C:
			return ErrVoiceSendTimeout
		}
	}
	return nil
}

// Close stops any playback in progress and clears the speaking indicator.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
	if p.speaking && p.speak != nil {
		if err := p.speak(false); err != nil {
			logging.Debugw("clear speaking failed", "error", err)
		}
		p.speaking = false
	}
}
