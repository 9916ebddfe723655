//go:build !unix

package main

import (
	"context"

	"github.com/discord-voice-bridge/internal/device"
)

// Mute and leave have no signal bindings off unix.
func watchControlSignals(context.Context, *device.Session) {}
