package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Logger is the structured logging surface used across the bridge.
type Logger interface {
	Infow(msg string, keysAndValues ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})
	Sync() error
}

// noopLogger keeps logging calls safe before Init is invoked.
type noopLogger struct{}

func (n noopLogger) Infow(msg string, keysAndValues ...interface{})  {}
func (n noopLogger) Debugw(msg string, keysAndValues ...interface{}) {}
func (n noopLogger) Warnw(msg string, keysAndValues ...interface{})  {}
func (n noopLogger) Errorw(msg string, keysAndValues ...interface{}) {}
func (n noopLogger) Fatalw(msg string, keysAndValues ...interface{}) {}
func (n noopLogger) Sync() error                                     { return nil }

var (
	currentMu sync.RWMutex
	current   Logger = noopLogger{}
)

// Options controls where and how verbosely Init logs.
type Options struct {
	// Level is one of debug, info, warn, error. Anything else means info.
	Level string
	// File, when set, adds a size-rotated JSON file sink next to stdout.
	File           string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
}

// ParseLevel maps a LOG_LEVEL style string onto a zap level.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Init builds the process logger and redirects the standard library logger
// into it. Only the first call has any effect.
func Init(opts Options) *zap.SugaredLogger {
	once.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.CallerKey = "caller"

		lvl := zap.NewAtomicLevelAt(ParseLevel(opts.Level))
		cores := []zapcore.Core{
			zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(os.Stdout), lvl),
		}
		if opts.File != "" {
			hook := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.FileMaxSizeMB,
				MaxBackups: opts.FileMaxBackups,
				MaxAge:     opts.FileMaxAgeDays,
				Compress:   true,
			}
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(hook), lvl))
		}

		logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zap.ErrorLevel))
		_ = zap.RedirectStdLog(logger)
		sugar = logger.Sugar()
		SetLogger(sugar)
	})
	return sugar
}

// Sugar returns the sugared logger built by Init, or nil.
func Sugar() *zap.SugaredLogger { return sugar }

// SetLogger replaces the package-level logger. Passing nil restores the
// logger built by Init (or the no-op logger). Tests use this to capture output.
func SetLogger(l Logger) {
	currentMu.Lock()
	defer currentMu.Unlock()
	if l != nil {
		current = l
		return
	}
	if sugar != nil {
		current = sugar
	} else {
		current = noopLogger{}
	}
}

// GetLogger returns the current Logger.
func GetLogger() Logger {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

func Infow(msg string, keysAndValues ...interface{}) {
	GetLogger().Infow(msg, keysAndValues...)
}

func Debugw(msg string, keysAndValues ...interface{}) {
	GetLogger().Debugw(msg, keysAndValues...)
}

func Warnw(msg string, keysAndValues ...interface{}) {
	GetLogger().Warnw(msg, keysAndValues...)
}

func Errorw(msg string, keysAndValues ...interface{}) {
	GetLogger().Errorw(msg, keysAndValues...)
}

// FatalExitf logs at fatal level and exits with code 1.
func FatalExitf(msg string, keysAndValues ...interface{}) {
	GetLogger().Fatalw(msg, keysAndValues...)
	os.Exit(1)
}

// Sync flushes any buffered logs.
func Sync() error {
	return GetLogger().Sync()
}

type ctxKeyType struct{}

// WithFields returns a context carrying extra key/value pairs. Fields already
// on ctx are kept and the new ones appended.
func WithFields(ctx context.Context, kv ...interface{}) context.Context {
	if len(kv) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(ctxKeyType{}).([]interface{})
	merged := make([]interface{}, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, ctxKeyType{}, merged)
}

// FromContext returns the fields attached with WithFields.
func FromContext(ctx context.Context) []interface{} {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(ctxKeyType{}).([]interface{})
	return v
}

func merge(ctx context.Context, kv []interface{}) []interface{} {
	ctxFields := FromContext(ctx)
	if len(ctxFields) == 0 {
		return kv
	}
	merged := make([]interface{}, 0, len(ctxFields)+len(kv))
	merged = append(merged, ctxFields...)
	return append(merged, kv...)
}

// InfowCtx logs at info level with the fields carried by ctx prepended.
func InfowCtx(ctx context.Context, msg string, kv ...interface{}) {
	GetLogger().Infow(msg, merge(ctx, kv)...)
}

// WarnwCtx logs at warn level with the fields carried by ctx prepended.
func WarnwCtx(ctx context.Context, msg string, kv ...interface{}) {
	GetLogger().Warnw(msg, merge(ctx, kv)...)
}

// Helpers returning canonical dot-separated keys for Discord entities.
func UserFields(userID, userName string) []interface{} {
	if userName == "" {
		return []interface{}{"user.id", userID}
	}
	return []interface{}{"user.id", userID, "user.name", userName}
}

func GuildFields(guildID, guildName string) []interface{} {
	if guildName == "" {
		return []interface{}{"guild.id", guildID}
	}
	return []interface{}{"guild.id", guildID, "guild.name", guildName}
}

func ChannelFields(channelID, channelName string) []interface{} {
	if channelName == "" {
		return []interface{}{"channel.id", channelID}
	}
	return []interface{}{"channel.id", channelID, "channel.name", channelName}
}

// DeviceFields identifies a remote device connection in log lines.
func DeviceFields(deviceID, userName string) []interface{} {
	if userName == "" {
		return []interface{}{"device.id", deviceID}
	}
	return []interface{}{"device.id", deviceID, "device.user", userName}
}
