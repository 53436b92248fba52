// Package logging provides structured logging for bksd, wrapping
// zerolog behind a small level-based API so the rest of the daemon never
// imports zerolog directly.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	JSON   bool
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration: info level,
// human-readable console output on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  LevelInfo,
		JSON:   false,
		Output: os.Stderr,
	}
}

// Logger wraps a zerolog.Logger with the level-named methods the rest of
// the daemon calls.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a new logger from config.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	var w io.Writer = output
	if !config.JSON {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	zl := zerolog.New(w).With().Timestamp().Logger().Level(config.Level.zerolog())
	return &Logger{zl: zl}
}

// With returns a child logger carrying the given key/value fields on every
// subsequent line. Values are interleaved key, value, key, value...
func (l *Logger) With(kv ...any) *Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		ctx = ctx.Interface(key, kv[i+1])
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) event(level LogLevel, msg string, args ...any) {
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelWarn:
		ev = l.zl.Warn()
	case LevelError:
		ev = l.zl.Error()
	default:
		ev = l.zl.Info()
	}
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, args ...any) { l.event(LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.event(LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.event(LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.event(LevelError, msg, args...) }

// Printf-style logging, kept for call sites and the interfaces.Logger
// contract that only know format strings.
func (l *Logger) Debugf(format string, args ...any) { l.event(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.event(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.event(LevelWarn, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.event(LevelError, fmt.Sprintf(format, args...)) }

// Printf satisfies interfaces.Logger and logs at info level.
func (l *Logger) Printf(format string, args ...any) {
	l.Infof(format, args...)
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the process-wide default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// Global convenience functions, mirroring the Logger methods above.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
