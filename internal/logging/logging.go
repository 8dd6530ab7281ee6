package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	logger   *slog.Logger
	exitFunc = os.Exit
)

// L returns the shared application logger, initializing it on first use.
func L() *slog.Logger {
	initOnce.Do(func() {
		logger = slog.New(newHandler())
	})
	return logger
}

func newHandler() slog.Handler {
	level := parseLevel(os.Getenv("FOLIO_LOG_LEVEL"))
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: strings.EqualFold(os.Getenv("FOLIO_LOG_SOURCE"), "true"),
	}

	if isStructured() {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	// Text handler writes to stderr so `folio insights --format json` stays pipeable.
	return slog.NewTextHandler(os.Stderr, opts)
}

func isStructured() bool {
	switch strings.ToLower(os.Getenv("FOLIO_LOG_FORMAT")) {
	case "json", "structured":
		return true
	default:
		return false
	}
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Zap builds a zap logger honouring the same level and format settings.
// It backs the HTTP request log middleware.
func Zap() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if !isStructured() {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(parseLevel(os.Getenv("FOLIO_LOG_LEVEL"))))
	cfg.OutputPaths = []string{"stderr"}

	built, err := cfg.Build()
	if err != nil {
		L().Warn("falling back to no-op request logger", "error", err)
		return zap.NewNop()
	}
	return built
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child logger with additional attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	L().Error(msg, args...)
	exitFunc(1)
}
