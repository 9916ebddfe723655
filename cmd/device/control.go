package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/discord-voice-bridge/internal/device"
	"github.com/discord-voice-bridge/internal/logging"
)

// controlTarget is the part of a device session the control lines drive.
type controlTarget interface {
	Muted() bool
	SetMuted(muted bool) error
	LeaveVoice() error
}

// followControl reads control lines from path until ctx ends or the
// writer closes it. Opening a FIFO blocks until a writer appears.
func followControl(ctx context.Context, path string, sess controlTarget, vol *device.Volume) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = f.Close()
	}()
	return runControl(ctx, f, sess, vol)
}

// runControl applies one command per line: "volume <gain>", "mute",
// "unmute" or "leave". Blank lines and lines starting with # are skipped.
// A bad line is logged and does not stop the loop.
func runControl(ctx context.Context, r io.Reader, sess controlTarget, vol *device.Volume) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := applyControl(line, sess, vol); err != nil {
			logging.Warnw("control command failed", "command", line, "error", err)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

func applyControl(line string, sess controlTarget, vol *device.Volume) error {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	switch cmd {
	case "volume":
		if len(fields) != 2 {
			return fmt.Errorf("usage: volume <gain between 0 and %g>", device.MaxVolume)
		}
		gain, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return fmt.Errorf("parse gain: %w", err)
		}
		vol.Set(float32(gain))
		logging.Infow("playback volume changed", "volume", vol.Get())
	case "mute", "unmute":
		muted := cmd == "mute"
		if sess.Muted() == muted {
			return nil
		}
		if err := sess.SetMuted(muted); err != nil {
			return err
		}
		logging.Infow("microphone toggled", "muted", muted)
	case "leave":
		if err := sess.LeaveVoice(); err != nil {
			return err
		}
		logging.Infow("asked bridge to leave voice")
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
