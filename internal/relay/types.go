package relay

import (
	"context"
	"time"
)

// ChannelTarget names the voice channel to join.
type ChannelTarget struct {
	GuildID   string
	ChannelID string
}

// ChannelInfo describes the voice channel a connection is bound to.
type ChannelInfo struct {
	GuildID     string `json:"guildId,omitempty"`
	GuildName   string `json:"guildName,omitempty"`
	ChannelID   string `json:"channelId,omitempty"`
	ChannelName string `json:"channelName,omitempty"`
}

// VoiceGateway opens voice connections.
type VoiceGateway interface {
	Join(ctx context.Context, target ChannelTarget) (VoiceConn, error)
}

// VoiceConn is one live connection to a voice channel. Callbacks may run on
// any goroutine; registering a ready callback on a connection that is
// already ready fires it once.
type VoiceConn interface {
	Channel() ChannelInfo
	OnReady(func())
	OnDisconnected(func())
	OnSpeakingStart(func(speakerID string))
	// Subscribe streams the speaker's Opus packets until endAfterSilence
	// passes without one, or until the subscription is closed.
	Subscribe(speakerID string, endAfterSilence time.Duration) (Subscription, error)
	Player() PlaybackUnit
	Destroy() error
}

// Subscription is a per-speaker stream of Opus packets.
type Subscription interface {
	// Frames is closed when the stream ends.
	Frames() <-chan []byte
	// Close ends the stream. Safe to call more than once.
	Close()
}

// PlaybackUnit plays one batch of Opus frames at a time and reports when it
// has gone idle again.
type PlaybackUnit interface {
	Play(frames [][]byte) error
	OnIdle(func())
}

// Status is the connection state reported to a device.
type Status struct {
	Connected   bool   `json:"connected"`
	ChannelName string `json:"channelName,omitempty"`
	GuildName   string `json:"guildName,omitempty"`
}

// Device is the remote listener/speaker. Sends must not block.
type Device interface {
	ID() string
	SendStatus(Status) error
	SendAudio(payload string) error
}
