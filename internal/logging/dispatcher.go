package logging

import "github.com/rs/zerolog"

// DispatcherLogger lets the dispatcher log through zerolog. Key-value
// pairs become zerolog fields; non-string keys and a trailing key without a
// value are dropped.
type DispatcherLogger struct {
	zl zerolog.Logger
}

// NewDispatcherLogger wraps zl.
func NewDispatcherLogger(zl zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{zl: zl}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	emit(l.zl.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	emit(l.zl.Error(), msg, keysAndValues)
}

func emit(e *zerolog.Event, msg string, keysAndValues []any) {
	if len(keysAndValues) > 0 {
		e = e.Fields(keysAndValues)
	}
	e.Msg(msg)
}
