package transport

import (
	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

// pionLoggerFactory routes pion's internal logging through logrus so the
// peer connection stack shares the application's log stream.
type pionLoggerFactory struct{}

func newPionLoggerFactory() logging.LoggerFactory {
	return &pionLoggerFactory{}
}

func (f *pionLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLeveledLogger{entry: logrus.WithField("scope", "pion/"+scope)}
}

type pionLeveledLogger struct {
	entry *logrus.Entry
}

func (l *pionLeveledLogger) Trace(msg string) { l.entry.Trace(msg) }
func (l *pionLeveledLogger) Tracef(format string, args ...interface{}) {
	l.entry.Tracef(format, args...)
}
func (l *pionLeveledLogger) Debug(msg string) { l.entry.Debug(msg) }
func (l *pionLeveledLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}
func (l *pionLeveledLogger) Info(msg string) { l.entry.Info(msg) }
func (l *pionLeveledLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}
func (l *pionLeveledLogger) Warn(msg string) { l.entry.Warn(msg) }
func (l *pionLeveledLogger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}
func (l *pionLeveledLogger) Error(msg string) { l.entry.Error(msg) }
func (l *pionLeveledLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
