package migration

import (
	"log/slog"
	"time"
)

// Logger receives the progress events of a run.
type Logger interface {
	// Started is called before a step runs.
	Started(step Step)
	// Finished is called after a step was committed.
	Finished(step Step)
	// Error is called when a step fails.
	Error(step Step, err error)
	// Trace reports diagnostic messages, such as planning and lock details.
	Trace(msg string, args ...any)
}

// NopLogger is a Logger that discards all events.
type NopLogger struct{}

var _ Logger = NopLogger{}

func (NopLogger) Started(Step)         {}
func (NopLogger) Finished(Step)        {}
func (NopLogger) Error(Step, error)    {}
func (NopLogger) Trace(string, ...any) {}

// SlogLogger is a Logger that writes to a slog.Logger.
type SlogLogger struct {
	logger  *slog.Logger
	trace   bool
	timeNow func() time.Time
	started time.Time
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger returns a Logger that writes step events at the info level.
// Trace messages are written at the debug level if trace is true, and
// discarded otherwise.
func NewSlogLogger(logger *slog.Logger, trace bool) *SlogLogger {
	return &SlogLogger{logger: logger, trace: trace, timeNow: time.Now}
}

func stepAttrs(step Step) []any {
	return []any{"version", step.Version, "name", step.Name, "direction", step.Direction.String()}
}

func (l *SlogLogger) Started(step Step) {
	l.started = l.timeNow()
	l.logger.Info("running migration", stepAttrs(step)...)
}

func (l *SlogLogger) Finished(step Step) {
	attrs := append(stepAttrs(step), "duration", l.timeNow().Sub(l.started).Round(time.Millisecond))
	l.logger.Info("finished migration", attrs...)
}

func (l *SlogLogger) Error(step Step, err error) {
	attrs := append(stepAttrs(step), "error", err.Error())
	l.logger.Error("migration failed", attrs...)
}

func (l *SlogLogger) Trace(msg string, args ...any) {
	if !l.trace {
		return
	}
	l.logger.Debug(msg, args...)
}
