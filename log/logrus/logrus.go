// Package logrus adapts sirupsen/logrus to dashsync.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/dashsync"
)

var _ dashsync.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component. A nil logger uses logrus.StandardLogger.
func New(l *logrus.Logger, component string) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	e := logrus.NewEntry(l)
	if component != "" {
		e = e.WithField("component", component)
	}
	return LogrusLogger{E: e}
}

func (l LogrusLogger) Debug(msg string, f dashsync.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f dashsync.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f dashsync.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f dashsync.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f dashsync.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f)-1)
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
