package logsink

import (
	"fmt"
	"time"

	"github.com/pion/logging"
)

// Factory is a logging.LoggerFactory whose loggers push every line
// onto a shared Sink instead of writing to stdout, per the spec's
// one-way UI log queue. It is passed as *Config.LoggerFactory to
// every component the way the teacher threads its own LoggerFactory.
type Factory struct {
	sink      *Sink
	threshold Level
}

// NewFactory returns a Factory backed by sink. threshold is the
// minimum level that reaches the sink; levels above it (more verbose)
// are dropped at the source rather than queued and discarded.
// threshold defaults to LevelInfo if out of range.
func NewFactory(sink *Sink, threshold Level) *Factory {
	if threshold < LevelError || threshold > LevelTrace {
		threshold = LevelInfo
	}
	return &Factory{sink: sink, threshold: threshold}
}

// NewLogger implements logging.LoggerFactory.
func (f *Factory) NewLogger(scope string) logging.LeveledLogger {
	return &scopedLogger{sink: f.sink, scope: scope, threshold: f.threshold}
}

type scopedLogger struct {
	sink      *Sink
	scope     string
	threshold Level
}

func (l *scopedLogger) log(level Level, msg string) {
	if level > l.threshold {
		return
	}
	l.sink.push(Event{Time: time.Now(), Scope: l.scope, Level: level, Message: msg})
}

func (l *scopedLogger) Trace(msg string) { l.log(LevelTrace, msg) }
func (l *scopedLogger) Tracef(format string, args ...interface{}) {
	l.log(LevelTrace, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Debug(msg string) { l.log(LevelDebug, msg) }
func (l *scopedLogger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Info(msg string) { l.log(LevelInfo, msg) }
func (l *scopedLogger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Warn(msg string) { l.log(LevelWarn, msg) }
func (l *scopedLogger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}
func (l *scopedLogger) Error(msg string) { l.log(LevelError, msg) }
func (l *scopedLogger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}
