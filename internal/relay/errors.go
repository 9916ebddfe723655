package relay

import (
	"errors"

	"github.com/discord-voice-bridge/internal/audio"
)

var (
	// ErrJoinFailed is returned by Join when the voice channel could not be
	// joined. The session stays idle.
	ErrJoinFailed = errors.New("failed to join voice channel")
	// ErrJoinSuperseded is returned by Join when a newer join or a leave
	// request replaced it before the connection came up.
	ErrJoinSuperseded = errors.New("join superseded")
	// ErrMalformedPayload marks device audio that is not valid transport text.
	ErrMalformedPayload = audio.ErrMalformedPayload
	// ErrPlaybackFailed marks a chunk that could not be transcoded or played.
	// The chunk is dropped and the queue moves on.
	ErrPlaybackFailed = errors.New("playback failed")
	// ErrNotAuthenticated rejects a device connection without a login session.
	ErrNotAuthenticated = errors.New("Not authenticated")
	// ErrLoopStopped is returned when work is submitted after Run returned.
	ErrLoopStopped = errors.New("relay loop stopped")
)
