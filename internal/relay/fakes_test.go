package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/discord-voice-bridge/internal/audio"
)

const waitTimeout = 2 * time.Second

type fakeGateway struct {
	mu      sync.Mutex
	conns   []*fakeConn
	err     error
	targets []ChannelTarget
	// block, when set, holds Join until closed or ctx is done.
	block chan struct{}
}

func (g *fakeGateway) Join(ctx context.Context, target ChannelTarget) (VoiceConn, error) {
	g.mu.Lock()
	g.targets = append(g.targets, target)
	block := g.block
	g.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	conn := newFakeConn(target)
	g.conns = append(g.conns, conn)
	return conn, nil
}

func (g *fakeGateway) last() *fakeConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		return nil
	}
	return g.conns[len(g.conns)-1]
}

type fakeConn struct {
	info   ChannelInfo
	player *fakePlayer

	mu         sync.Mutex
	ready      func()
	dropped    func()
	speaking   func(string)
	subs       map[string][]*fakeSub
	subscribed []string
	destroyed  chan struct{}
	once       sync.Once
}

func newFakeConn(target ChannelTarget) *fakeConn {
	return &fakeConn{
		info: ChannelInfo{
			GuildID:     target.GuildID,
			GuildName:   "Guild " + target.GuildID,
			ChannelID:   target.ChannelID,
			ChannelName: "Channel " + target.ChannelID,
		},
		player:    &fakePlayer{},
		subs:      make(map[string][]*fakeSub),
		destroyed: make(chan struct{}),
	}
}

func (f *fakeConn) Channel() ChannelInfo { return f.info }

func (f *fakeConn) OnReady(cb func()) {
	f.mu.Lock()
	f.ready = cb
	f.mu.Unlock()
}

func (f *fakeConn) OnDisconnected(cb func()) {
	f.mu.Lock()
	f.dropped = cb
	f.mu.Unlock()
}

func (f *fakeConn) OnSpeakingStart(cb func(string)) {
	f.mu.Lock()
	f.speaking = cb
	f.mu.Unlock()
}

func (f *fakeConn) Subscribe(speakerID string, silence time.Duration) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSub{frames: make(chan []byte, 16)}
	f.subs[speakerID] = append(f.subs[speakerID], s)
	f.subscribed = append(f.subscribed, speakerID)
	return s, nil
}

func (f *fakeConn) Player() PlaybackUnit { return f.player }

func (f *fakeConn) Destroy() error {
	f.once.Do(func() { close(f.destroyed) })
	return nil
}

func (f *fakeConn) fireReady() {
	f.mu.Lock()
	cb := f.ready
	f.mu.Unlock()
	cb()
}

func (f *fakeConn) fireDisconnect() {
	f.mu.Lock()
	cb := f.dropped
	f.mu.Unlock()
	cb()
}

func (f *fakeConn) speak(id string) {
	f.mu.Lock()
	cb := f.speaking
	f.mu.Unlock()
	cb(id)
}

func (f *fakeConn) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func (f *fakeConn) sub(id string) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.subs[id]
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

func (f *fakeConn) waitDestroyed(t *testing.T) {
	t.Helper()
	select {
	case <-f.destroyed:
	case <-time.After(waitTimeout):
		t.Fatalf("connection was not destroyed")
	}
}

type fakeSub struct {
	mu     sync.Mutex
	frames chan []byte
	closed bool
}

func (s *fakeSub) Frames() <-chan []byte { return s.frames }

func (s *fakeSub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
}

func (s *fakeSub) push(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames <- frame
	return true
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakePlayer struct {
	mu    sync.Mutex
	plays [][][]byte
	idle  func()
	err   error
}

func (p *fakePlayer) Play(frames [][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.plays = append(p.plays, frames)
	return nil
}

func (p *fakePlayer) OnIdle(cb func()) {
	p.mu.Lock()
	p.idle = cb
	p.mu.Unlock()
}

// finish reports the in-flight chunk as done.
func (p *fakePlayer) finish() {
	p.mu.Lock()
	cb := p.idle
	p.mu.Unlock()
	cb()
}

// markers returns the first encoded byte of every played chunk.
func (p *fakePlayer) markers() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, 0, len(p.plays))
	for _, frames := range p.plays {
		out = append(out, frames[0][0])
	}
	return out
}

const failMarker = 99

var errEncode = errors.New("encode failed")

// fakeCodec encodes a frame as its first sample and decodes frames as raw
// PCM16LE bytes.
type fakeCodec struct {
	mu       sync.Mutex
	decoders []*fakeDecoder
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []int16) ([]byte, error) {
	if pcm[0] == failMarker {
		return nil, errEncode
	}
	return []byte{byte(pcm[0])}, nil
}

type fakeDecoder struct {
	mu     sync.Mutex
	closed bool
}

func (d *fakeDecoder) Decode(frame []byte) ([]int16, error) {
	return audio.BytesToPCM16(frame)
}

func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDecoder) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (c *fakeCodec) NewEncoder() (Encoder, error) { return fakeEncoder{}, nil }

func (c *fakeCodec) NewDecoder() (Decoder, error) {
	d := &fakeDecoder{}
	c.mu.Lock()
	c.decoders = append(c.decoders, d)
	c.mu.Unlock()
	return d, nil
}

func (c *fakeCodec) allClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.decoders {
		if !d.isClosed() {
			return false
		}
	}
	return true
}

type fakeDevice struct {
	id       string
	statuses chan Status
	audio    chan string
}

func newFakeDevice(id string) *fakeDevice {
	return &fakeDevice{
		id:       id,
		statuses: make(chan Status, 64),
		audio:    make(chan string, 64),
	}
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) SendStatus(s Status) error {
	d.statuses <- s
	return nil
}

func (d *fakeDevice) SendAudio(payload string) error {
	d.audio <- payload
	return nil
}

func (d *fakeDevice) nextStatus(t *testing.T) Status {
	t.Helper()
	select {
	case s := <-d.statuses:
		return s
	case <-time.After(waitTimeout):
		t.Fatalf("device %s: no status received", d.id)
		return Status{}
	}
}

func (d *fakeDevice) expectNoStatus(t *testing.T) {
	t.Helper()
	select {
	case s := <-d.statuses:
		t.Fatalf("device %s: unexpected status %+v", d.id, s)
	default:
	}
}

func (d *fakeDevice) nextAudio(t *testing.T) string {
	t.Helper()
	select {
	case p := <-d.audio:
		return p
	case <-time.After(waitTimeout):
		t.Fatalf("device %s: no audio received", d.id)
		return ""
	}
}

// chunkPayload is one 20ms frame of device audio whose samples all equal
// marker.
func chunkPayload(marker int16) string {
	samples := make([]int16, audio.FrameSamples)
	for i := range samples {
		samples[i] = marker
	}
	return audio.EncodeTransport(audio.PCM16ToBytes(samples))
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
