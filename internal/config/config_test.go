package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"LOGIN_USERNAME": "friend",
		"LOGIN_PASSWORD": "hunter2",
		"BOT_TOKEN":      "token",
	}
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, 100*time.Millisecond, cfg.SilenceTimeout)
	assert.Equal(t, 0, cfg.QueueMaxDepth)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, "voice-bridge-secret-key", cfg.SessionSecret)
	assert.Equal(t, "./public", cfg.StaticPath)
	assert.Equal(t, int64(100000000), cfg.MaxMessageBytes)
	assert.True(t, cfg.MCPEnabled)
	assert.Equal(t, 15*time.Second, cfg.JoinTimeout)
	assert.False(t, cfg.DebugEvents)
	assert.Equal(t, 8192, cfg.EventPayloadMaxBytes)
}

func TestLoadFromOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "8081"
	env["SILENCE_TIMEOUT"] = "250ms"
	env["QUEUE_MAX_DEPTH"] = "64"
	env["MCP_ENABLED"] = "false"

	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.SilenceTimeout)
	assert.Equal(t, 64, cfg.QueueMaxDepth)
	assert.False(t, cfg.MCPEnabled)
}

func TestLoadFromMissingRequired(t *testing.T) {
	for _, key := range []string{"LOGIN_USERNAME", "LOGIN_PASSWORD", "BOT_TOKEN"} {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			delete(env, key)
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}

func TestValidateRejectsBadTunables(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "negative queue depth", key: "QUEUE_MAX_DEPTH", val: "-1"},
		{name: "zero silence", key: "SILENCE_TIMEOUT", val: "0s"},
		{name: "port out of range", key: "PORT", val: "70000"},
		{name: "zero send buffer", key: "WS_SEND_BUFFER", val: "0"},
		{name: "zero join timeout", key: "JOIN_TIMEOUT", val: "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env[tt.key] = tt.val
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
