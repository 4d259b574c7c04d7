// Package logging builds the process-wide slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"imagehost/internal/config"
)

// TimeKey replaces slog's default "time" key in JSON output.
const TimeKey = "ts"

// New returns a logger writing to w. Format "text" gives tint's human-readable output;
// anything else gives one JSON object per line with an RFC3339Nano "ts" in the configured zone.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(tint.NewHandler(w, &tint.Options{
			AddSource:  cfg.AddSource,
			Level:      level,
			TimeFormat: time.DateTime,
		}))
	}

	loc := cfg.Location()
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: cfg.AddSource,
		Level:     level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(TimeKey, a.Value.Time().In(loc).Format(time.RFC3339Nano))
			}
			return a
		},
	}))
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
