// Copyright Contributors to the Opus project

// Package logging defines the leveled log capability consumed by the
// orchestration core and provides a logr-backed default implementation.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Logger is the log sink capability the orchestration core calls. Any sink
// is acceptable; the core never depends on a concrete implementation.
type Logger interface {
	Info(message string)
	Warn(message string)
	Warning(message string)
	Debug(message string)
	Error(message string)
	Critical(message string)
}

// logrAdapter maps the leveled capability onto a logr.Logger.
type logrAdapter struct {
	log logr.Logger
}

// New wraps a logr.Logger as a Logger.
func New(log logr.Logger) Logger {
	return &logrAdapter{log: log}
}

// Default returns a Logger backed by a zap production configuration.
// It falls back to a no-op sink when zap cannot initialize.
func Default() Logger {
	zapLog, err := zap.NewProduction()
	if err != nil {
		return Discard()
	}
	return New(zapr.NewLogger(zapLog))
}

// Discard returns a Logger that drops all messages.
func Discard() Logger {
	return New(logr.Discard())
}

func (l *logrAdapter) Info(message string) {
	l.log.Info(message)
}

func (l *logrAdapter) Warn(message string) {
	l.log.Info(message, "level", "warning")
}

func (l *logrAdapter) Warning(message string) {
	l.Warn(message)
}

func (l *logrAdapter) Debug(message string) {
	l.log.V(1).Info(message)
}

func (l *logrAdapter) Error(message string) {
	l.log.Error(nil, message)
}

func (l *logrAdapter) Critical(message string) {
	l.log.Error(nil, message, "level", "critical")
}

// OrDiscard returns log unchanged when non-nil, else a discarding Logger.
// Constructors use it so a nil logger argument is always safe.
func OrDiscard(log Logger) Logger {
	if log == nil {
		return Discard()
	}
	return log
}
