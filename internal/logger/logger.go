package logger

import (
	"log/slog"
	"os"
	"strings"
)

var Logger *slog.Logger

// Init sets up the process-wide slog logger. LOG_LEVEL picks the
// minimum level (debug, info, warn, error); DEBUG=true is a shorthand
// for LOG_LEVEL=debug.
func Init() {
	opts := &slog.HandlerOptions{
		Level: levelFromEnv(),
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(Logger)
}

func levelFromEnv() slog.Level {
	if os.Getenv("DEBUG") == "true" {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger tagged with a component attribute, for
// subsystems that emit many lines (HTTP surface, cycles).
func With(component string) *slog.Logger {
	return Logger.With("component", component)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
