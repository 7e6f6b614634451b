// Package logging builds the application's slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// ParseLevel maps debug/info/warn/error to a slog.Level. Unknown values yield info.
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

// NewHandler returns a JSON handler for format "json", a colorized tint handler for
// "text", and for an empty format picks tint when out is a terminal.
func NewHandler(out io.Writer, format, level string) slog.Handler {
	lvl := ParseLevel(level)

	useText := false
	switch strings.ToLower(format) {
	case "json":
	case "text", "pretty":
		useText = true
	default:
		useText = isTerminal(out)
	}

	if useText {
		return tint.NewHandler(out, &tint.Options{
			Level:      lvl,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(out),
		})
	}
	return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl})
}

// Setup installs a logger writing to stdout as the slog default and returns it.
func Setup(format, level string) *slog.Logger {
	logger := slog.New(NewHandler(os.Stdout, format, level))
	slog.SetDefault(logger)
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
