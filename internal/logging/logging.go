// Package logging configures colored structured logging with tint.
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup builds the process-wide logger at the level specified by the
// LOG_LEVEL env var (default: INFO), installs it as slog's default, and
// returns it.
func Setup() *slog.Logger {
	return SetupWithLevel(levelFromEnv())
}

// SetupWithLevel builds and installs a colored logger at the given level.
func SetupWithLevel(level slog.Level) *slog.Logger {
	log := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}),
	)
	slog.SetDefault(log)
	return log
}

func levelFromEnv() slog.Level {
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
