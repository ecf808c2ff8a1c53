// Package logging adapts zerolog to the [types.Logger] interface accepted by
// every component in this module.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slackmgr/types"
)

// Logger is a [types.Logger] backed by a zerolog logger.
type Logger struct {
	zl zerolog.Logger
}

var _ types.Logger = (*Logger)(nil)

// New creates a timestamped JSON logger writing to w at the given level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info. When
// console is true output is human-readable instead of JSON.
func New(w io.Writer, level string, console bool) *Logger {
	if w == nil {
		w = os.Stderr
	}

	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return &Logger{
		zl: zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger(),
	}
}

// Wrap adapts an existing zerolog logger.
func Wrap(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return l
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithField(key string, value any) types.Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

//nolint:ireturn // Must return interface to implement types.Logger
func (l *Logger) WithFields(fields map[string]any) types.Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string)                  { l.zl.Debug().Msg(msg) }
func (l *Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l *Logger) Info(msg string)                   { l.zl.Info().Msg(msg) }
func (l *Logger) Infof(format string, args ...any)  { l.zl.Info().Msgf(format, args...) }
func (l *Logger) Warn(msg string)                   { l.zl.Warn().Msg(msg) }
func (l *Logger) Warnf(format string, args ...any)  { l.zl.Warn().Msgf(format, args...) }
func (l *Logger) Error(msg string)                  { l.zl.Error().Msg(msg) }
func (l *Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
func (l *Logger) Fatal(msg string)                  { l.zl.Fatal().Msg(msg) }
func (l *Logger) Fatalf(format string, args ...any) { l.zl.Fatal().Msgf(format, args...) }
