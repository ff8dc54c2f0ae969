// Package logging builds the structured logger handed to each function at start-up.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values fall back to INFO.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to w. Keys are renamed to the ones Cloud
// Logging recognises so that entries get the right severity in the console.
func New(w io.Writer, levelName string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(levelName),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severity"
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return slog.New(handler)
}
