// Package slog adapts log/slog to recordcache.Logger.
package slog

import (
	"context"
	"io"
	stdslog "log/slog"
	"sort"

	rc "github.com/unkn0wn-root/recordcache"
)

var _ rc.Logger = Logger{}

type Logger struct{ L *stdslog.Logger }

// New returns a JSON slog logger writing to w at level.
func New(w io.Writer, level string) (*stdslog.Logger, error) {
	var lvl stdslog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return stdslog.New(stdslog.NewJSONHandler(w, &stdslog.HandlerOptions{Level: lvl})), nil
}

func (s Logger) Debug(msg string, f rc.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelDebug, msg, attrs(f)...)
}
func (s Logger) Info(msg string, f rc.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelInfo, msg, attrs(f)...)
}
func (s Logger) Warn(msg string, f rc.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelWarn, msg, attrs(f)...)
}
func (s Logger) Error(msg string, f rc.Fields) {
	s.L.LogAttrs(context.Background(), stdslog.LevelError, msg, attrs(f)...)
}

func attrs(f rc.Fields) []stdslog.Attr {
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
