// Package logger provides structured logging for numlink components.
// It wraps logrus with a component field so every line identifies the
// boundary layer (engine, gateway, bridge, handle) that emitted it.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is a component-scoped structured logger.
type Logger struct {
	entry *logrus.Entry
}

// Config controls logger construction.
type Config struct {
	Component string
	Level     string // debug|info|warn|error
	Output    io.Writer
}

// New creates a logger with the given configuration.
func New(cfg Config) *Logger {
	base := logrus.New()

	if cfg.Output != nil {
		base.SetOutput(cfg.Output)
	} else {
		base.SetOutput(os.Stderr)
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	return &Logger{entry: base.WithField("component", cfg.Component)}
}

// NewDefault creates a logger with sensible defaults for the component.
func NewDefault(component string) *Logger {
	return New(Config{Component: component, Level: "info"})
}

// WithField returns an entry with an additional field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry.WithField(key, value)
}

// WithFields returns an entry with additional fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	if fields == nil {
		return l.entry
	}
	return l.entry.WithFields(fields)
}

// WithError returns an entry carrying an error field.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.entry.WithError(err)
}

// Debug logs at debug level.
func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }

// Info logs at info level.
func (l *Logger) Info(args ...interface{}) { l.entry.Info(args...) }

// Warn logs at warn level.
func (l *Logger) Warn(args ...interface{}) { l.entry.Warn(args...) }

// Error logs at error level.
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
