package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// Context field keys shared by all handlers
const (
	moduleKey  = "module"
	traceIDKey = "trace_id"
)

// newTextHandler creates the human-readable console handler. Timestamps are
// omitted since journald or the container runtime adds them.
func newTextHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, formatLevel(a.Value.Any()))
			}
			if t, ok := a.Value.Any().(time.Time); ok && tz != nil {
				return slog.Time(a.Key, t.In(tz))
			}
			return a
		},
	})
}

// newJSONHandler creates the machine-readable file handler with timestamps in tz.
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.LevelKey {
				return slog.String(slog.LevelKey, formatLevel(a.Value.Any()))
			}
			if t, ok := a.Value.Any().(time.Time); ok && tz != nil {
				return slog.Time(a.Key, t.In(tz))
			}
			return a
		},
	})
}

// formatLevel renders the custom trace level instead of "DEBUG-4"
func formatLevel(v any) string {
	level, ok := v.(slog.Level)
	if !ok {
		return "INFO"
	}
	if level <= traceLevelValue {
		return "TRACE"
	}
	s := level.String()
	if len(s) > maxLevelWidth {
		s = strings.SplitN(s, "+", 2)[0]
		s = strings.SplitN(s, "-", 2)[0]
	}
	return s
}

// parseSlogLevel converts a LogLevel into a slog.Level
func parseSlogLevel(level LogLevel) slog.Level {
	return parseLogLevel(string(level))
}
