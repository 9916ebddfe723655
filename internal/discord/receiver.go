package discord

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/relay"
)

// DefaultSpeakingDelay is how long a speaker must be silent before the next
// packet counts as a new speaking start.
const DefaultSpeakingDelay = 100 * time.Millisecond

const subscriptionBuffer = 32

// Receiver demultiplexes the voice connection's Opus packets by speaker.
// SSRCs are mapped to users from speaking updates.
type Receiver struct {
	clock clock.Clock
	delay time.Duration

	mu       sync.Mutex
	ssrcUser map[uint32]string
	active   map[string]*activity
	subs     map[string]*subscription
	onStart  func(string)
	closed   bool
}

// activity tracks one user's current speaking burst.
type activity struct {
	last  time.Time
	timer *clock.Timer
}

func NewReceiver(clk clock.Clock, speakingDelay time.Duration) *Receiver {
	if clk == nil {
		clk = clock.New()
	}
	if speakingDelay <= 0 {
		speakingDelay = DefaultSpeakingDelay
	}
	return &Receiver{
		clock:    clk,
		delay:    speakingDelay,
		ssrcUser: make(map[uint32]string),
		active:   make(map[string]*activity),
		subs:     make(map[string]*subscription),
	}
}

// OnSpeakingStart registers the callback fired when a user starts a new
// speaking burst.
func (r *Receiver) OnSpeakingStart(cb func(userID string)) {
	r.mu.Lock()
	r.onStart = cb
	r.mu.Unlock()
}

// HandleSpeakingUpdate records the SSRC for the user.
func (r *Receiver) HandleSpeakingUpdate(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
	if su == nil || su.UserID == "" {
		return
	}
	r.mu.Lock()
	r.ssrcUser[uint32(su.SSRC)] = su.UserID
	r.mu.Unlock()
	logging.Debugw("mapped ssrc to user", "ssrc", su.SSRC, "user.id", su.UserID, "speaking", su.Speaking)
}

// Run feeds packets to HandlePacket until ctx ends or packets closes.
func (r *Receiver) Run(ctx context.Context, packets <-chan *discordgo.Packet) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-packets:
			if !ok {
				return
			}
			r.HandlePacket(p)
		}
	}
}

// HandlePacket routes one packet to its speaker. Packets from an unknown
// SSRC are dropped.
func (r *Receiver) HandlePacket(p *discordgo.Packet) {
	if p == nil || len(p.Opus) == 0 {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	userID, ok := r.ssrcUser[p.SSRC]
	if !ok {
		r.mu.Unlock()
		return
	}
	now := r.clock.Now()

	started := r.touch(userID, now)
	if sub := r.subs[userID]; sub != nil {
		sub.deliver(p.Opus, now)
	}
	cb := r.onStart
	r.mu.Unlock()

	if started && cb != nil {
		cb(userID)
	}
}

// touch extends the user's burst and reports whether it just began.
// Caller holds r.mu.
func (r *Receiver) touch(userID string, now time.Time) bool {
	if a, ok := r.active[userID]; ok {
		a.last = now
		a.timer.Reset(r.delay)
		return false
	}
	a := &activity{last: now}
	a.timer = r.clock.AfterFunc(r.delay, func() { r.expireActivity(userID, a) })
	r.active[userID] = a
	return true
}

func (r *Receiver) expireActivity(userID string, a *activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[userID] != a {
		return
	}
	// A packet may have arrived after the timer fired.
	if r.clock.Since(a.last) < r.delay {
		return
	}
	delete(r.active, userID)
}

// Subscribe opens a packet stream for userID that ends once no packet has
// arrived for endAfterSilence. An existing stream for the user is replaced.
func (r *Receiver) Subscribe(userID string, endAfterSilence time.Duration) (relay.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrConnectionClosed
	}
	if old := r.subs[userID]; old != nil {
		old.closeLocked()
	}
	s := &subscription{
		r:       r,
		userID:  userID,
		silence: endAfterSilence,
		frames:  make(chan []byte, subscriptionBuffer),
		last:    r.clock.Now(),
	}
	s.timer = r.clock.AfterFunc(endAfterSilence, s.expire)
	r.subs[userID] = s
	return s, nil
}

// Close ends every subscription and stops all timers.
func (r *Receiver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, s := range r.subs {
		s.closeLocked()
	}
	for id, a := range r.active {
		a.timer.Stop()
		delete(r.active, id)
	}
}

// subscription implements relay.Subscription. Sends and the close of frames
// both happen under r.mu.
type subscription struct {
	r       *Receiver
	userID  string
	silence time.Duration
	frames  chan []byte
	timer   *clock.Timer
	last    time.Time
	closed  bool
}

func (s *subscription) Frames() <-chan []byte { return s.frames }

func (s *subscription) Close() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.closeLocked()
}

func (s *subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.timer.Stop()
	if s.r.subs[s.userID] == s {
		delete(s.r.subs, s.userID)
	}
	close(s.frames)
}

func (s *subscription) deliver(frame []byte, now time.Time) {
	if s.closed {
		return
	}
	s.last = now
	s.timer.Reset(s.silence)
	select {
	case s.frames <- frame:
	default:
		logging.Debugw("speaker stream full, dropping packet", "user.id", s.userID)
	}
}

func (s *subscription) expire() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.closed || s.r.clock.Since(s.last) < s.silence {
		return
	}
	s.closeLocked()
}
