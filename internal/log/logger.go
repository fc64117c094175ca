// SPDX-License-Identifier: MIT
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
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
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// Logger is a leveled logger. It is built once at start-up and handed to
// every component that needs to report diagnostics; there is no package
// level instance.
type Logger struct {
	level  atomic.Uint32
	out    *stdlog.Logger
	prefix string
}

// New creates a Logger writing to w, showing date and time with microseconds.
func New(w io.Writer, level LogLevel) *Logger {
	l := &Logger{
		out: stdlog.New(w, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds),
	}
	l.level.Store(uint32(level))
	return l
}

// NewStderr is shorthand for New(os.Stderr, level).
func NewStderr(level LogLevel) *Logger {
	return New(os.Stderr, level)
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() *Logger {
	return New(io.Discard, LevelFatal)
}

// With returns a child logger sharing the output and level whose messages
// are prefixed with the component name.
func (l *Logger) With(component string) *Logger {
	c := &Logger{out: l.out, prefix: component + ": "}
	c.level.Store(l.level.Load())
	return c
}

// SetLevel sets the logging level atomically.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Store(uint32(level))
}

// Level gets the current logging level atomically.
func (l *Logger) Level() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.Level()
}

func (l *Logger) emit(level LogLevel, msg string) {
	// INFO and WARN are padded so the message column lines up.
	pad := " "
	if level == LevelInfo || level == LevelWarn {
		pad = "  "
	}
	l.out.Printf("[%s]%s%s%s", level, pad, l.prefix, msg)
}

// Debugf logs a formatted debug message if the level is appropriate.
func (l *Logger) Debugf(format string, v ...any) {
	if l.shouldLog(LevelDebug) {
		l.emit(LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func (l *Logger) Infof(format string, v ...any) {
	if l.shouldLog(LevelInfo) {
		l.emit(LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func (l *Logger) Warnf(format string, v ...any) {
	if l.shouldLog(LevelWarn) {
		l.emit(LevelWarn, fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func (l *Logger) Errorf(format string, v ...any) {
	if l.shouldLog(LevelError) {
		l.emit(LevelError, fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func (l *Logger) Fatalf(format string, v ...any) {
	l.out.Fatalf("[%s] %s%s", LevelFatal, l.prefix, fmt.Sprintf(format, v...))
}

// Info logs an info message if the level is appropriate.
func (l *Logger) Info(v ...any) {
	if l.shouldLog(LevelInfo) {
		l.emit(LevelInfo, fmt.Sprint(v...))
	}
}

// Warn logs a warning message if the level is appropriate.
func (l *Logger) Warn(v ...any) {
	if l.shouldLog(LevelWarn) {
		l.emit(LevelWarn, fmt.Sprint(v...))
	}
}

// Error logs an error message if the level is appropriate.
func (l *Logger) Error(v ...any) {
	if l.shouldLog(LevelError) {
		l.emit(LevelError, fmt.Sprint(v...))
	}
}
