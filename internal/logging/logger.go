// Package logging wraps a package-level logrus logger, binding the
// proxy's abstract info/error/debug collaborator to a concrete,
// thread-safe implementation.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields and Entry mirror logrus's structured-logging types so callers
// elsewhere in the repo never need to import logrus directly.
type Fields = logrus.Fields
type Entry = logrus.Entry

var base = logrus.New()

func init() {
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// Configure gates debug-level output on debug and, when logFile is
// non-empty, tees output to a rotating file sink alongside stdout.
func Configure(debug bool, logFile string) {
	if debug {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}

	if logFile == "" {
		base.SetOutput(os.Stdout)
		return
	}

	fileSink := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	base.SetOutput(io.MultiWriter(os.Stdout, fileSink))
}

func Info(args ...interface{})                  { base.Info(args...) }
func Infof(format string, args ...interface{})  { base.Infof(format, args...) }
func Error(args ...interface{})                 { base.Error(args...) }
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }
func Debug(args ...interface{})                 { base.Debug(args...) }
func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }

// WithFields returns a log entry pre-populated with structured context,
// for per-request correlation (request id, cache key, pipeline phase).
func WithFields(fields Fields) *Entry {
	return base.WithFields(fields)
}
