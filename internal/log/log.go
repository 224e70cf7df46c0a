package log

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	sugar  *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	inited bool
)

// initLogger builds the default logger (JSON to stderr) on first use.
func initLogger() *zap.SugaredLogger {
	mu.RLock()
	if inited {
		s := sugar
		mu.RUnlock()
		return s
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if !inited {
		sugar = build("json").Sugar()
		inited = true
	}
	return sugar
}

func build(format string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	l, err := cfg.Build()
	if err != nil {
		// Config above is static; Build only fails on bad sink paths.
		return zap.NewNop()
	}
	return l
}

// Configure replaces the global logger. format is "json" (default) or
// "console"; level is one of debug, info, warn, error.
func Configure(lvl, format string) error {
	parsed, err := ParseLevel(lvl)
	if err != nil {
		return err
	}
	SetLevel(parsed)

	l := build(strings.ToLower(format))
	mu.Lock()
	old := sugar
	sugar = l.Sugar()
	inited = true
	mu.Unlock()
	if old != nil {
		_ = old.Sync()
	}
	return nil
}

// SetLogger installs an externally built zap logger (tests use an observer core).
func SetLogger(l *zap.Logger) {
	mu.Lock()
	sugar = l.Sugar()
	inited = true
	mu.Unlock()
}

// ParseLevel accepts level names case-insensitively. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

func SetLevel(l Level) {
	level.SetLevel(l.zapLevel())
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Debug(msg string, kv ...any) {
	initLogger().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	initLogger().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	initLogger().Errorw(msg, extended...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = initLogger().Sync()
}
