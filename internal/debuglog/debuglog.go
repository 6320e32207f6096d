// Package debuglog is the diagnostic logger used by strata itself.
// It never writes application logs; it reports dropped events, misbehaving
// processors and configuration problems.
package debuglog

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var logger atomic.Pointer[logrus.Logger]

func init() {
	logger.Store(newLogger(os.Stderr))
}

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		TimestampFormat: time.DateTime,
	})
	l.SetLevel(logrus.WarnLevel)
	l.SetOutput(out)
	return l
}

// Logger returns the diagnostic logger.
func Logger() *logrus.Logger {
	return logger.Load()
}

// SetDebug switches verbose diagnostics on or off.
func SetDebug(enabled bool) {
	if enabled {
		Logger().SetLevel(logrus.DebugLevel)
	} else {
		Logger().SetLevel(logrus.WarnLevel)
	}
}

// SetOutput redirects diagnostics to w.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	Logger().SetOutput(w)
}

// WithField returns an entry carrying a single field.
func WithField(key string, value any) *logrus.Entry {
	return Logger().WithField(key, value)
}

func Debugf(format string, args ...any) {
	Logger().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	Logger().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	Logger().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	Logger().Errorf(format, args...)
}
