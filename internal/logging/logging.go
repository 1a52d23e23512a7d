// Package logging wraps github.com/sirupsen/logrus behind a narrow
// interface, the same indirection open-policy-agent-opa/logging uses to
// keep call sites decoupled from the concrete logging library.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the narrow interface every fbdbg package logs through.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithField(key string, value any) Logger
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New returns a Logger backed by a *logrus.Logger writing to stderr, with
// the level parsed from name ("debug", "info", "warn", "error"; defaults
// to "info" on an unrecognized name).
func New(level string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

// NewNoOp returns a Logger that discards everything, for tests.
func NewNoOp() Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.PanicLevel)
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *logrusLogger) WithField(key string, value any) Logger {
	return &logrusLogger{entry: l.entry.WithField(key, value)}
}
