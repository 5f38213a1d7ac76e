package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// SlogLogger implements the ports.Logger interface on top of log/slog with a
// JSON handler.
type SlogLogger struct {
	logger *slog.Logger
}

// LogLevel defines the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string level to LogLevel.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo // Default to Info
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewSlogLogger creates a new structured logger writing JSON to os.Stderr.
func NewSlogLogger(level LogLevel) *SlogLogger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &SlogLogger{logger: slog.New(handler)}
}

func attrs(err error, fields ...map[string]interface{}) []any {
	args := make([]any, 0, 8)
	if err != nil {
		args = append(args, "error", err.Error())
	}
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			args = append(args, k, v)
		}
	}
	return args
}

// Debug logs a message at Debug level.
func (l *SlogLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.DebugContext(ctx, msg, attrs(nil, fields...)...)
}

// Info logs a message at Info level.
func (l *SlogLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.InfoContext(ctx, msg, attrs(nil, fields...)...)
}

// Warn logs a message at Warning level.
func (l *SlogLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.logger.WarnContext(ctx, msg, attrs(nil, fields...)...)
}

// Error logs an error message at Error level.
func (l *SlogLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.logger.ErrorContext(ctx, msg, attrs(err, fields...)...)
}
