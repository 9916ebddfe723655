package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/discord-voice-bridge/internal/audio"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/metrics"
)

const DefaultSilenceTimeout = 100 * time.Millisecond

type Options struct {
	// SelfID is the bot's own user id. Its audio is never subscribed.
	SelfID string
	// SilenceTimeout ends a speaker stream after this long without packets.
	SilenceTimeout time.Duration
	// QueueMaxDepth bounds the outbound queue; 0 leaves it unbounded.
	QueueMaxDepth int
	Clock         clock.Clock
	Metrics       *metrics.Metrics
}

// Controller owns the relay session, the outbound queue and the speaker
// streams. Every mutation happens on its loop; the exported methods are safe
// to call from any goroutine other than the loop itself.
type Controller struct {
	loop    *Loop
	gateway VoiceGateway
	codec   Codec
	opts    Options

	sess   session
	sink   *sink
	source *source
	device Device
}

func New(gateway VoiceGateway, codec Codec, opts Options) *Controller {
	if opts.SilenceTimeout <= 0 {
		opts.SilenceTimeout = DefaultSilenceTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	c := &Controller{
		loop:    NewLoop(),
		gateway: gateway,
		codec:   codec,
		opts:    opts,
	}
	c.opts.Metrics.SetSessionState(StateIdle.String())
	return c
}

// Run drives the event loop until ctx is cancelled, then tears the session
// down.
func (c *Controller) Run(ctx context.Context) error {
	err := c.loop.Run(ctx)
	// The loop is gone; finish teardown inline.
	c.teardown("shutdown")
	return err
}

// Join connects to target, replacing any current connection. It returns once
// the connection exists; the session becomes Connected when the transport
// reports ready.
func (c *Controller) Join(ctx context.Context, target ChannelTarget) (ChannelInfo, error) {
	var gen uint64
	// Once posted the task runs regardless of ctx, so wait for it and let the
	// second hop put the session back when ctx ended meanwhile.
	if err := c.loop.Do(context.WithoutCancel(ctx), func() {
		c.teardown("replaced")
		gen = c.sess.begin()
		c.setState(StateConnecting)
	}); err != nil {
		return ChannelInfo{}, err
	}

	var conn VoiceConn
	joinErr := ctx.Err()
	if joinErr == nil {
		logging.Infow("joining voice channel", "guild.id", target.GuildID, "channel.id", target.ChannelID)
		conn, joinErr = c.gateway.Join(ctx, target)
	}

	superseded := false
	// The outcome must reach the loop even if ctx was cancelled meanwhile.
	err := c.loop.Do(context.WithoutCancel(ctx), func() {
		if !c.sess.current(gen) {
			superseded = true
			return
		}
		if joinErr != nil {
			c.sess.reset()
			c.setState(StateIdle)
			return
		}
		c.bind(gen, conn)
	})
	if err != nil {
		superseded = true
	}

	if joinErr != nil {
		c.opts.Metrics.RecordJoin("failed")
		logging.Warnw("voice join failed", "guild.id", target.GuildID, "channel.id", target.ChannelID, "error", joinErr)
		return ChannelInfo{}, fmt.Errorf("%w: %w", ErrJoinFailed, joinErr)
	}
	if superseded {
		c.opts.Metrics.RecordJoin("superseded")
		destroy(conn)
		return ChannelInfo{}, ErrJoinSuperseded
	}
	c.opts.Metrics.RecordJoin("ok")
	return conn.Channel(), nil
}

// bind attaches the new connection's callbacks, all of them tagged with gen.
func (c *Controller) bind(gen uint64, conn VoiceConn) {
	c.sess.bind(conn)

	player := conn.Player()
	enc, err := c.codec.NewEncoder()
	if err != nil {
		logging.Errorw("opus encoder unavailable, device audio will be dropped", "error", err)
		enc = nil
	}
	c.sink = newSink(player, enc, c.opts.QueueMaxDepth, c.opts.Metrics)

	player.OnIdle(func() {
		c.loop.Post(func() {
			if c.sess.current(gen) && c.sink != nil {
				c.sink.handleIdle()
			}
		})
	})
	conn.OnSpeakingStart(func(speakerID string) {
		c.loop.Post(func() {
			if c.sess.current(gen) && c.source != nil {
				c.source.speakingStart(speakerID)
			}
		})
	})
	conn.OnDisconnected(func() {
		c.loop.Post(func() { c.handleDisconnect(gen) })
	})
	conn.OnReady(func() {
		c.loop.Post(func() { c.handleReady(gen) })
	})
}

func (c *Controller) handleReady(gen uint64) {
	if !c.sess.current(gen) || c.sess.state != StateConnecting {
		return
	}
	c.sess.ready()
	c.setState(StateConnected)
	c.source = &source{
		selfID:  c.opts.SelfID,
		silence: c.opts.SilenceTimeout,
		conn:    c.sess.conn,
		codec:   c.codec,
		clock:   c.opts.Clock,
		metrics: c.opts.Metrics,
		post:    c.loop.Post,
		deliver: func(speakerID, payload string) { c.forwardAudio(gen, speakerID, payload) },
		streams: make(map[string]*speakerStream),
	}
	logging.Infow("voice connection ready",
		append(logging.GuildFields(c.sess.channel.GuildID, c.sess.channel.GuildName),
			logging.ChannelFields(c.sess.channel.ChannelID, c.sess.channel.ChannelName)...)...)
	c.sendStatus()
}

func (c *Controller) handleDisconnect(gen uint64) {
	if !c.sess.current(gen) {
		return
	}
	logging.Infow("voice connection lost", "channel.id", c.sess.channel.ChannelID)
	c.teardown("disconnected")
}

// teardown releases the session's connection, streams and queue. It is a
// no-op when already idle.
func (c *Controller) teardown(reason string) {
	if c.sess.state == StateIdle && c.sess.conn == nil {
		return
	}
	wasConnected := c.sess.state == StateConnected

	if c.source != nil {
		c.source.closeAll()
		c.source = nil
	}
	if c.sink != nil {
		c.sink.close()
		c.sink = nil
	}
	conn := c.sess.reset()
	c.setState(StateIdle)
	logging.Infow("relay session ended", "reason", reason)

	if conn != nil {
		go destroy(conn)
	}
	if wasConnected {
		c.sendStatus()
	}
}

func destroy(conn VoiceConn) {
	if conn == nil {
		return
	}
	if err := conn.Destroy(); err != nil {
		logging.Warnw("voice connection destroy failed", "error", err)
	}
}

func (c *Controller) setState(s State) {
	c.opts.Metrics.SetSessionState(s.String())
}

func (c *Controller) sendStatus() {
	if c.device == nil {
		return
	}
	if err := c.device.SendStatus(c.sess.status()); err != nil {
		logging.Warnw("status send failed", "device.id", c.device.ID(), "error", err)
	}
}

func (c *Controller) forwardAudio(gen uint64, speakerID, payload string) {
	if !c.sess.current(gen) || !c.sess.receiving {
		c.opts.Metrics.RecordAudioDiscarded("stale")
		return
	}
	if c.device == nil {
		c.opts.Metrics.RecordAudioDiscarded("no_device")
		return
	}
	if err := c.device.SendAudio(payload); err != nil {
		c.opts.Metrics.RecordAudioDiscarded("send_failed")
		logging.Debugw("device audio send failed", "device.id", c.device.ID(), "user.id", speakerID, "error", err)
		return
	}
	c.opts.Metrics.RecordAudioForwarded()
}

// AttachDevice makes d the audio destination, replacing any previous device,
// and sends it the current status.
func (c *Controller) AttachDevice(d Device) bool {
	return c.loop.Post(func() {
		if prev := c.device; prev != nil && prev.ID() != d.ID() {
			logging.Infow("device replaced", "device.id", d.ID(), "previous", prev.ID())
		}
		c.device = d
		c.opts.Metrics.SetDeviceAttached(true)
		c.sendStatus()
	})
}

// DetachDevice clears the destination if d is still the attached device.
func (c *Controller) DetachDevice(d Device) bool {
	return c.loop.Post(func() {
		if c.device == nil || c.device.ID() != d.ID() {
			return
		}
		c.device = nil
		c.opts.Metrics.SetDeviceAttached(false)
	})
}

// OnDeviceAudio decodes a transport payload and queues it for playback.
// Audio that arrives while no connection is up is dropped.
func (c *Controller) OnDeviceAudio(payload string) error {
	pcm, err := audio.DecodeTransport(payload)
	if err != nil {
		c.opts.Metrics.RecordChunkDropped("malformed")
		return err
	}
	chunk := Chunk{PCM: pcm, Received: c.opts.Clock.Now()}
	if !c.loop.Post(func() { c.enqueue(chunk) }) {
		return ErrLoopStopped
	}
	return nil
}

func (c *Controller) enqueue(chunk Chunk) {
	if c.sess.state != StateConnected || c.sink == nil {
		c.opts.Metrics.RecordChunkDropped("not_connected")
		return
	}
	c.sink.enqueue(chunk)
}

// OnDeviceMuteToggle records the device's microphone state.
func (c *Controller) OnDeviceMuteToggle(muted bool) {
	logging.Infow("device mute toggled", "muted", muted)
}

// RequestLeave tears the session down without waiting.
func (c *Controller) RequestLeave() bool {
	return c.loop.Post(func() { c.teardown("leave requested") })
}

// Leave tears the session down and reports whether one was active.
func (c *Controller) Leave(ctx context.Context) (bool, error) {
	var active bool
	err := c.loop.Do(ctx, func() {
		active = c.sess.state != StateIdle
		c.teardown("leave requested")
	})
	return active, err
}

// Status returns a snapshot of the relay.
func (c *Controller) Status(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.loop.Do(ctx, func() {
		snap.State = c.sess.state
		snap.Channel = c.sess.channel
		if c.device != nil {
			snap.DeviceID = c.device.ID()
		}
		if c.sink != nil {
			snap.QueueDepth = c.sink.queue.Len()
			snap.Playing = c.sink.playing
		}
		if c.source != nil {
			snap.ActiveStreams = len(c.source.streams)
		}
	})
	return snap, err
}
