package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap/zapcore"

	"github.com/discord-voice-bridge/internal/config"
	"github.com/discord-voice-bridge/internal/device"
	"github.com/discord-voice-bridge/internal/discord"
	"github.com/discord-voice-bridge/internal/logging"
	"github.com/discord-voice-bridge/internal/mcp"
	"github.com/discord-voice-bridge/internal/metrics"
	"github.com/discord-voice-bridge/internal/relay"
	"github.com/discord-voice-bridge/internal/server"
)

var version = "dev"

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildVoiceStates

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Options{
		Level:          cfg.LogLevel,
		File:           cfg.LogFile,
		FileMaxSizeMB:  cfg.LogFileMaxMB,
		FileMaxBackups: cfg.LogFileMaxBackups,
		FileMaxAgeDays: cfg.LogFileMaxAgeDays,
	})

	if err := run(ctx, cfg); err != nil {
		logging.FatalExitf("bridge stopped", "error", err)
	}
	logging.Infow("shutdown complete")
	_ = logging.Sync()
}

func run(ctx context.Context, cfg *config.Config) error {
	dg, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return fmt.Errorf("discordgo.New: %w", err)
	}
	dg.Identify.Intents = intents
	logging.Infow("using gateway intents", "intents", dg.Identify.Intents)

	ready := make(chan *discordgo.Ready, 1)
	dg.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) { ready <- r })
	if cfg.DebugEvents {
		dg.AddHandler(eventLogger(cfg.EventPayloadMaxBytes))
	}

	logging.Infow("opening discord session")
	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord session open failed: %w", err)
	}
	defer func() {
		if err := dg.Close(); err != nil {
			logging.Warnw("discord session close error", "error", err)
		}
	}()

	var r *discordgo.Ready
	select {
	case r = <-ready:
	case <-time.After(cfg.ReadyTimeout):
		return errors.New("discord did not become ready")
	case <-ctx.Done():
		return nil
	}
	if r.User == nil {
		return errors.New("ready event without a user")
	}
	selfID := r.User.ID
	logging.Infow("discord ready", append(logging.UserFields(selfID, r.User.Username), "guilds", len(r.Guilds))...)

	clk := clock.New()
	m := metrics.New()
	gateway := discord.NewGateway(dg, selfID, discord.NewResolver(dg, clk), clk)
	defer gateway.Close()

	ctrl := relay.New(gateway, relay.OpusCodec{}, relay.Options{
		SelfID:         selfID,
		SilenceTimeout: cfg.SilenceTimeout,
		QueueMaxDepth:  cfg.QueueMaxDepth,
		Clock:          clk,
		Metrics:        m,
	})
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = ctrl.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	dg.AddHandler(gateway.HandleVoiceStateUpdate)
	dg.AddHandler(discord.NewCommands(ctrl, cfg.JoinTimeout).HandleMessageCreate)

	var mcpHandler http.Handler
	if cfg.MCPEnabled {
		mcpHandler = mcp.Handler(ctx, mcp.NewServer(ctrl, version))
	}
	router := server.NewRouter(ctx, ctrl, server.Options{
		Username:      cfg.LoginUsername,
		Password:      cfg.LoginPassword,
		SessionSecret: cfg.SessionSecret,
		SessionMaxAge: cfg.SessionMaxAge,
		SecureCookie:  cfg.SecureCookie,
		StaticPath:    cfg.StaticPath,
		Device: device.Options{
			SendBuffer:      cfg.WSSendBuffer,
			MaxMessageBytes: cfg.MaxMessageBytes,
		},
		Metrics: m,
		MCP:     mcpHandler,
		Debug:   logging.ParseLevel(cfg.LogLevel) == zapcore.DebugLevel,
	})
	web := server.New(cfg.Addr(), router)
	if err := web.Start(); err != nil {
		return fmt.Errorf("web server: %w", err)
	}

	<-ctx.Done()
	logging.Infow("shutdown signal received, closing resources")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if left, err := ctrl.Leave(shutdownCtx); err != nil {
		logging.Warnw("voice leave on shutdown failed", "error", err)
	} else if left {
		logging.Infow("left voice channel")
	}
	if err := web.Shutdown(shutdownCtx); err != nil {
		logging.Warnw("web server forced to shutdown", "error", err)
	}
	return nil
}
