package observability

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"
)

// Logger writes one JSON object per line with timestamp, level and message
// keys followed by the event fields.
type Logger struct {
	base *slog.Logger
}

func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout)
}

func NewLoggerTo(w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				a.Key = "level"
				a.Value = slog.StringValue(levelName(a.Value.Any()))
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	})
	return &Logger{base: slog.New(handler)}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.write(slog.LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]any) {
	l.write(slog.LevelWarn, message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.write(slog.LevelError, message, fields)
}

func (l *Logger) write(level slog.Level, message string, fields map[string]any) {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		value := fields[key]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		attrs = append(attrs, slog.Any(key, value))
	}
	l.base.LogAttrs(context.Background(), level, message, attrs...)
}

func levelName(value any) string {
	level, ok := value.(slog.Level)
	if !ok {
		return "info"
	}
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
