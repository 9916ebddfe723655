package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bwmarrin/discordgo"

	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/relay"
)

// Gateway opens voice connections on a discordgo session. It keeps at most
// one connection per guild and watches the bot's own voice state to notice
// when Discord drops it.
type Gateway struct {
	session  *discordgo.Session
	selfID   string
	resolver NameResolver
	clock    clock.Clock

	mu    sync.Mutex
	conns map[string]*voiceConn
}

func NewGateway(s *discordgo.Session, selfID string, resolver NameResolver, clk clock.Clock) *Gateway {
	if resolver == nil {
		resolver = NoopResolver{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Gateway{
		session:  s,
		selfID:   selfID,
		resolver: resolver,
		clock:    clk,
		conns:    make(map[string]*voiceConn),
	}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Join connects to the channel. discordgo blocks until the voice handshake
// completes; if ctx ends first the late connection is disconnected.
func (g *Gateway) Join(ctx context.Context, target relay.ChannelTarget) (relay.VoiceConn, error) {
	// discordgo keeps one voice connection per guild; the old one must be
	// gone before the next join or its disconnect would end the new one.
	g.mu.Lock()
	prev := g.conns[target.GuildID]
	g.mu.Unlock()
	if prev != nil {
		_ = prev.Destroy()
	}

	done := make(chan joinResult, 1)
	go func() {
		vc, err := g.session.ChannelVoiceJoin(target.GuildID, target.ChannelID, false, false)
		done <- joinResult{vc: vc, err: err}
	}()

	var res joinResult
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			if late := <-done; late.vc != nil {
				_ = late.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
	if res.err != nil {
		if res.vc != nil {
			_ = res.vc.Disconnect()
		}
		return nil, fmt.Errorf("unable to join the voice channel: %w", res.err)
	}

	info := relay.ChannelInfo{
		GuildID:     target.GuildID,
		GuildName:   g.resolver.GuildName(target.GuildID),
		ChannelID:   target.ChannelID,
		ChannelName: g.resolver.ChannelName(target.ChannelID),
	}
	conn := newVoiceConn(res.vc, info, g.clock, func(c *voiceConn) { g.forget(c) })

	g.mu.Lock()
	g.conns[target.GuildID] = conn
	g.mu.Unlock()

	logging.Infow("voice joined", append(logging.GuildFields(info.GuildID, info.GuildName),
		logging.ChannelFields(info.ChannelID, info.ChannelName)...)...)
	conn.markReady()
	return conn, nil
}

func (g *Gateway) forget(c *voiceConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conns[c.info.GuildID] == c {
		delete(g.conns, c.info.GuildID)
	}
}

// HandleVoiceStateUpdate watches the bot's own voice state. Leaving the
// channel from Discord's side (kick, channel deleted) ends the connection.
func (g *Gateway) HandleVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	if vs == nil || vs.VoiceState == nil || vs.UserID != g.selfID {
		return
	}
	g.mu.Lock()
	conn := g.conns[vs.GuildID]
	g.mu.Unlock()
	if conn == nil {
		return
	}
	switch {
	case vs.ChannelID == "":
		logging.Infow("bot removed from voice channel", "guild.id", vs.GuildID)
		conn.disconnected()
	case vs.ChannelID != conn.info.ChannelID:
		// discordgo follows the move on its own; the relay keeps running.
		logging.Infow("bot moved to another voice channel", "guild.id", vs.GuildID, "channel.id", vs.ChannelID)
	}
}

// Close destroys every open connection.
func (g *Gateway) Close() {
	g.mu.Lock()
	conns := make([]*voiceConn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()
	for _, c := range conns {
		_ = c.Destroy()
	}
}

// voiceConn adapts a discordgo voice connection to relay.VoiceConn.
type voiceConn struct {
	vc       *discordgo.VoiceConnection
	info     relay.ChannelInfo
	receiver *Receiver
	player   *Player
	cancel   context.CancelFunc
	release  func(*voiceConn)

	mu           sync.Mutex
	ready        bool
	onReady      []func()
	onDisconnect func()
	gone         bool
	destroyOnce  sync.Once
}

func newVoiceConn(vc *discordgo.VoiceConnection, info relay.ChannelInfo, clk clock.Clock, release func(*voiceConn)) *voiceConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &voiceConn{
		vc:       vc,
		info:     info,
		receiver: NewReceiver(clk, DefaultSpeakingDelay),
		cancel:   cancel,
		release:  release,
	}
	if vc != nil {
		c.player = NewPlayer(vc.OpusSend, vc.Speaking)
		vc.AddHandler(c.receiver.HandleSpeakingUpdate)
		go c.receiver.Run(ctx, vc.OpusRecv)
	} else {
		c.player = NewPlayer(nil, nil)
	}
	return c
}

func (c *voiceConn) Channel() relay.ChannelInfo { return c.info }

func (c *voiceConn) OnReady(cb func()) {
	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		go cb()
		return
	}
	c.onReady = append(c.onReady, cb)
	c.mu.Unlock()
}

func (c *voiceConn) markReady() {
	c.mu.Lock()
	c.ready = true
	cbs := c.onReady
	c.onReady = nil
	c.mu.Unlock()
	for _, cb := range cbs {
		go cb()
	}
}

func (c *voiceConn) OnDisconnected(cb func()) {
	c.mu.Lock()
	c.onDisconnect = cb
	c.mu.Unlock()
}

func (c *voiceConn) disconnected() {
	c.mu.Lock()
	if c.gone {
		c.mu.Unlock()
		return
	}
	c.gone = true
	cb := c.onDisconnect
	c.mu.Unlock()
	c.stop()
	if cb != nil {
		cb()
	}
}

func (c *voiceConn) OnSpeakingStart(cb func(string)) { c.receiver.OnSpeakingStart(cb) }

func (c *voiceConn) Subscribe(speakerID string, endAfterSilence time.Duration) (relay.Subscription, error) {
	return c.receiver.Subscribe(speakerID, endAfterSilence)
}

func (c *voiceConn) Player() relay.PlaybackUnit { return c.player }

// stop halts receive and playback without leaving the channel.
func (c *voiceConn) stop() {
	c.cancel()
	c.receiver.Close()
	c.player.Close()
}

// Destroy stops the connection and leaves the voice channel. Concurrent
// callers wait for the first to finish.
func (c *voiceConn) Destroy() error {
	var err error
	c.destroyOnce.Do(func() {
		c.mu.Lock()
		c.gone = true
		c.mu.Unlock()

		c.stop()
		if c.release != nil {
			c.release(c)
		}
		if c.vc != nil {
			err = c.vc.Disconnect()
		}
	})
	return err
}
