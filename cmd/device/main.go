package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/discord-voice-bridge/internal/device"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/mcp"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "voice-device",
		Usage:   "Remote device for the Discord voice bridge",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Base URL of the bridge",
				Value:   "http://localhost:3000",
				EnvVars: []string{"BRIDGE_URL"},
			},
			&cli.StringFlag{
				Name:     "username",
				Usage:    "Login username",
				EnvVars:  []string{"LOGIN_USERNAME"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "password",
				Usage:    "Login password",
				EnvVars:  []string{"LOGIN_PASSWORD"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logging.Init(logging.Options{Level: c.String("log-level")})
			return nil
		},
		After: func(*cli.Context) error {
			_ = logging.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "stream",
				Usage:  "Log in and relay audio between local streams and the voice channel",
				Action: stream,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "input",
						Usage: "PCM16LE stereo 48kHz source, - for stdin",
						Value: "-",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "PCM16LE stereo 48kHz sink, - for stdout",
						Value: "-",
					},
					&cli.Float64Flag{
						Name:  "volume",
						Usage: "Playback gain between 0 and 2",
						Value: 1,
					},
					&cli.StringFlag{
						Name:  "control",
						Usage: "File or FIFO of control lines: volume <gain>, mute, unmute, leave",
					},
					&cli.BoolFlag{
						Name:  "muted",
						Usage: "Start with capture muted",
					},
					&cli.IntFlag{
						Name:  "chunk",
						Usage: "Capture chunk length in milliseconds",
						Value: 100,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Print the bridge's relay status",
				Action: status,
			},
			{
				Name:   "leave",
				Usage:  "Ask the bridge to leave its voice channel",
				Action: leave,
			},
		},
	}
}

func stream(c *cli.Context) error {
	chunkMS := c.Int("chunk")
	if chunkMS <= 0 {
		return cli.Exit("--chunk must be positive", 1)
	}
	in, closeIn, err := openInput(c.String("input"))
	if err != nil {
		return cli.Exit("open input: "+err.Error(), 1)
	}
	defer closeIn()
	out, closeOut, err := openOutput(c.String("output"))
	if err != nil {
		return cli.Exit("open output: "+err.Error(), 1)
	}
	defer closeOut()

	client, err := login(c.Context, c)
	if err != nil {
		return err
	}
	sess, err := client.Connect(c.Context)
	if err != nil {
		return cli.Exit("connect: "+err.Error(), 1)
	}
	defer sess.Close()
	logging.Infow("connected to bridge", "url", c.String("url"))

	if c.Bool("muted") {
		if err := sess.SetMuted(true); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	renderer := &device.Renderer{W: out, Volume: device.NewVolume(float32(c.Float64("volume")))}
	go watchControlSignals(ctx, sess)
	if path := c.String("control"); path != "" {
		go func() {
			if err := followControl(ctx, path, sess, renderer.Volume); err != nil {
				logging.Warnw("control input stopped", "path", path, "error", err)
			}
		}()
	}
	go func() {
		err := device.Capture(ctx, in, device.ChunkBytes(chunkMS), sess.SendAudio)
		switch {
		case err == nil:
			logging.Infow("audio input ended")
		case errors.Is(err, context.Canceled):
		default:
			logging.Warnw("audio capture stopped", "error", err)
		}
	}()

	if err := sess.Run(ctx, renderer); err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit("bridge connection: "+err.Error(), 1)
	}
	return nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// login returns a device client holding the bridge session cookie.
func login(ctx context.Context, c *cli.Context) (*device.Client, error) {
	client, err := device.NewClient(c.String("url"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	if err := client.Login(ctx, c.String("username"), c.String("password")); err != nil {
		return nil, cli.Exit("login: "+err.Error(), 1)
	}
	return client, nil
}

func controlClient(c *cli.Context) (*mcp.Client, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	dev, err := login(ctx, c)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	client := mcp.NewClient("voice-device", version)
	if err := client.ConnectWebSocket(ctx, c.String("url"), dev.Dialer()); err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return client, ctx, cancel, nil
}

func status(c *cli.Context) error {
	client, ctx, cancel, err := controlClient(c)
	if err != nil {
		return cli.Exit("connect: "+err.Error(), 1)
	}
	defer cancel()
	defer client.Close()

	snap, err := client.Status(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func leave(c *cli.Context) error {
	client, ctx, cancel, err := controlClient(c)
	if err != nil {
		return cli.Exit("connect: "+err.Error(), 1)
	}
	defer cancel()
	defer client.Close()

	msg, err := client.Leave(ctx)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprintln(c.App.Writer, msg)
	return nil
}
