// Package logrus adapts sirupsen/logrus to recordcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	rc "github.com/unkn0wn-root/recordcache"
)

var _ rc.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New returns a JSON logrus entry at level.
func New(level string) (*logrus.Entry, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return logrus.NewEntry(l), nil
}

func (l LogrusLogger) Debug(msg string, f rc.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f rc.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f rc.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f rc.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
