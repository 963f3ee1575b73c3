package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Init installs the process-wide default slog.Logger: a color text handler
// to stderr when foreground is true, and a JSON handler writing to
// <directory>/healerd.log via lumberjack rotation when directory is
// non-empty. With neither, it falls back to a plain text handler on stderr.
// RUST_LOG, when set, overrides level.
func Init(level string, directory string, foreground bool) error {
	lvl := parseLevel(resolveLevel(level))
	opts := &slog.HandlerOptions{Level: lvl}

	var handlers []slog.Handler
	if foreground {
		handlers = append(handlers, NewColorTextHandler(os.Stderr, opts, true))
	}
	if directory != "" {
		if err := os.MkdirAll(directory, 0o750); err != nil {
			return err
		}
		w := &lj.Logger{
			Filename:   filepath.Join(directory, "healerd.log"),
			MaxSize:    DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
			MaxAge:     DefaultMaxAgeDays,
		}
		handlers = append(handlers, slog.NewJSONHandler(w, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = multiHandler(handlers)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func resolveLevel(configured string) string {
	if v := os.Getenv("RUST_LOG"); v != "" {
		return v
	}
	return configured
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
