package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds everything the bridge reads from the environment.
type Config struct {
	Port          int           `env:"PORT, default=3000"`
	LoginUsername string        `env:"LOGIN_USERNAME, required"`
	LoginPassword string        `env:"LOGIN_PASSWORD, required"`
	BotToken      string        `env:"BOT_TOKEN, required"`
	SessionSecret string        `env:"SESSION_SECRET, default=voice-bridge-secret-key"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE, default=24h"`
	SecureCookie  bool          `env:"SECURE_COOKIE, default=false"`
	StaticPath    string        `env:"STATIC_PATH, default=./public"`

	// SilenceTimeout ends a speaker's stream after this much silence.
	SilenceTimeout time.Duration `env:"SILENCE_TIMEOUT, default=100ms"`
	// QueueMaxDepth bounds the outbound queue; 0 leaves it unbounded.
	QueueMaxDepth   int   `env:"QUEUE_MAX_DEPTH, default=0"`
	MaxMessageBytes int64 `env:"MAX_MESSAGE_BYTES, default=100000000"`
	WSSendBuffer    int   `env:"WS_SEND_BUFFER, default=256"`

	MCPEnabled      bool          `env:"MCP_ENABLED, default=true"`
	JoinTimeout     time.Duration `env:"JOIN_TIMEOUT, default=15s"`
	ReadyTimeout    time.Duration `env:"READY_TIMEOUT, default=30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	// DebugEvents logs every gateway event with secrets redacted and payloads
	// capped at EventPayloadMaxBytes.
	DebugEvents          bool `env:"DEBUG_EVENTS, default=false"`
	EventPayloadMaxBytes int  `env:"EVENT_PAYLOAD_MAX_BYTES, default=8192"`

	LogLevel          string `env:"LOG_LEVEL, default=info"`
	LogFile           string `env:"LOG_FILE"`
	LogFileMaxMB      int    `env:"LOG_FILE_MAX_MB, default=50"`
	LogFileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS, default=3"`
	LogFileMaxAgeDays int    `env:"LOG_FILE_MAX_AGE_DAYS, default=7"`
}

// LoadEnv loads a .env file from the working directory into the process
// environment. A missing file is reported as fs.ErrNotExist.
func LoadEnv() error {
	return godotenv.Load()
}

// Load reads .env (if present) and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := LoadEnv(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom processes configuration from an arbitrary lookuper.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("SILENCE_TIMEOUT must be positive, got %s", c.SilenceTimeout)
	}
	if c.QueueMaxDepth < 0 {
		return fmt.Errorf("QUEUE_MAX_DEPTH must not be negative, got %d", c.QueueMaxDepth)
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.WSSendBuffer)
	}
	if c.JoinTimeout <= 0 {
		return fmt.Errorf("JOIN_TIMEOUT must be positive, got %s", c.JoinTimeout)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be positive, got %d", c.MaxMessageBytes)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
