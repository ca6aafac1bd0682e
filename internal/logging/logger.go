package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup initializes the global slog logger with JSON output to stdout and,
// when LOG_FILE is set, to a size-rotated file. The returned handler is the
// base that main later combines with the database sink.
func Setup(cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	handlers := []slog.Handler{slog.NewJSONHandler(os.Stdout, opts)}
	if cfg.LogFile != "" {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 7,
			MaxAge:     14, // days
			Compress:   true,
		}, opts))
	}

	base := NewMultiHandler(handlers...)
	slog.SetDefault(slog.New(base))
	return base
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
