package logger

import (
	"context"
	"fmt"
	"io"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel maps a config string to a Level. Matching is case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

type Fields map[string]any

type Logger interface {
	Debug(msg string)
	Debugf(format string, args ...any)
	Info(msg string)
	Infof(format string, args ...any)
	Warn(msg string)
	Warnf(format string, args ...any)
	Error(msg string)
	Errorf(format string, args ...any)
	Fatal(msg string)
	Fatalf(format string, args ...any)

	WithField(key string, value any) Logger
	WithFields(fields Fields) Logger
	WithContext(ctx context.Context) Logger

	SetLevel(level Level)
	SetOutput(output io.Writer)
}

type nopLogger struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string)                         {}
func (nopLogger) Debugf(string, ...any)                {}
func (nopLogger) Info(string)                          {}
func (nopLogger) Infof(string, ...any)                 {}
func (nopLogger) Warn(string)                          {}
func (nopLogger) Warnf(string, ...any)                 {}
func (nopLogger) Error(string)                         {}
func (nopLogger) Errorf(string, ...any)                {}
func (nopLogger) Fatal(string)                         {}
func (nopLogger) Fatalf(string, ...any)                {}
func (n nopLogger) WithField(string, any) Logger       { return n }
func (n nopLogger) WithFields(Fields) Logger           { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
func (nopLogger) SetLevel(Level)                       {}
func (nopLogger) SetOutput(io.Writer)                  {}
