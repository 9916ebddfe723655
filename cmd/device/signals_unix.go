//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/discord-voice-bridge/internal/device"
	"github.com/discord-voice-bridge/internal/logging"
)

// watchControlSignals maps SIGUSR1 to a mute toggle and SIGUSR2 to a
// leave-voice request.
func watchControlSignals(ctx context.Context, sess *device.Session) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				muted := !sess.Muted()
				if err := sess.SetMuted(muted); err != nil {
					logging.Warnw("mute toggle failed", "error", err)
					continue
				}
				logging.Infow("microphone toggled", "muted", muted)
			case syscall.SIGUSR2:
				if err := sess.LeaveVoice(); err != nil {
					logging.Warnw("leave request failed", "error", err)
					continue
				}
				logging.Infow("asked bridge to leave voice")
			}
		}
	}
}
