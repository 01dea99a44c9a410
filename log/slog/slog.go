// Package slog adapts log/slog to dashsync.Logger.
package slog

import (
	"context"
	stdslog "log/slog"
	"sort"

	"github.com/unkn0wn-root/dashsync"
)

var _ dashsync.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New tags every record with component (e.g. "cache", "live", "stepup").
func New(l *stdslog.Logger, component string) Logger {
	if l == nil {
		l = stdslog.Default()
	}
	if component != "" {
		l = l.With("component", component)
	}
	return Logger{L: l}
}

func (s Logger) Debug(msg string, f dashsync.Fields) { s.log(stdslog.LevelDebug, msg, f) }
func (s Logger) Info(msg string, f dashsync.Fields)  { s.log(stdslog.LevelInfo, msg, f) }
func (s Logger) Warn(msg string, f dashsync.Fields)  { s.log(stdslog.LevelWarn, msg, f) }
func (s Logger) Error(msg string, f dashsync.Fields) { s.log(stdslog.LevelError, msg, f) }

func (s Logger) log(lvl stdslog.Level, msg string, f dashsync.Fields) {
	ctx := context.Background()
	if !s.L.Enabled(ctx, lvl) {
		return
	}
	s.L.LogAttrs(ctx, lvl, msg, attrs(f)...)
}

// attrs are sorted so text output is stable between runs.
func attrs(f dashsync.Fields) []stdslog.Attr {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]stdslog.Attr, 0, len(f))
	for _, k := range keys {
		out = append(out, stdslog.Any(k, f[k]))
	}
	return out
}
