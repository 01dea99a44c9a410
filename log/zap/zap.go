// Package zap adapts go.uber.org/zap to dashsync.Logger.
package zap

import (
	"github.com/unkn0wn-root/dashsync"
	"go.uber.org/zap"
)

var _ dashsync.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger after component. A nil logger logs nothing.
func New(l *zap.Logger, component string) ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	if component != "" {
		l = l.Named(component)
	}
	return ZapLogger{L: l}
}

func (z ZapLogger) Debug(msg string, f dashsync.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f dashsync.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f dashsync.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f dashsync.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f dashsync.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
