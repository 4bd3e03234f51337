package events

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/config"
)

// LogLevel represents logging severity.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides structured logging on top of zerolog. The zero value
// discards everything.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger creates a logger from config.
func NewLogger(cfg *config.LogConfig) (*Logger, error) {
	var output io.Writer = os.Stderr
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errors.Errorf("open log file: %w", err)
		}
		output = file
	}

	hostname, _ := os.Hostname()

	l := newLogger(parseLevel(cfg.Level), cfg.Format, output, cfg.Color && cfg.File == "")
	l.zl = l.zl.With().Str("hostname", hostname).Logger()
	return l, nil
}

// NewTestLogger creates a logger for testing.
func NewTestLogger(level LogLevel, format string, output io.Writer) *Logger {
	return newLogger(level, format, output, false)
}

func newLogger(level LogLevel, format string, output io.Writer, color bool) *Logger {
	if format != "json" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    !color,
			TimeFormat: time.RFC3339,
		}
	}

	return &Logger{
		zl: zerolog.New(output).Level(zerologLevel(level)).With().Timestamp().Logger(),
	}
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithError adds an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

// Info logs at info level.
func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error logs at error level.
func (l *Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

// Zerolog exposes the underlying logger for code that logs through
// zerolog.Ctx.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

// Helper functions

func parseLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
