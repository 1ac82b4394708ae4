package evlog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Fields carries structured context attached to a log entry.
type Fields = logrus.Fields

type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithFields(fields Fields) Logger
}

var logger = NewNoneLogger()

func SetLogger(l Logger) {
	if l == nil {
		l = NewNoneLogger()
	}
	logger = l
}

func GetLogger() Logger {
	return logger
}

func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warningf(format string, args ...interface{}) {
	logger.Warningf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func WithFields(fields Fields) Logger {
	return logger.WithFields(fields)
}

func NewDebugLogger() Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	return &stdLogger{l}
}

// NewLogger returns a logrus backed logger at the named level
// ("debug", "info", "warning", ...). An unknown level falls back to info.
func NewLogger(level string) Logger {
	l := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return &stdLogger{l}
}

// NewWriterLogger logs text entries to w, mostly useful in tests.
func NewWriterLogger(w io.Writer, level logrus.Level) Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return &stdLogger{l}
}

type stdLogger struct {
	entry logrus.FieldLogger
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *stdLogger) Warningf(format string, args ...interface{}) {
	l.entry.Warningf(format, args...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *stdLogger) WithFields(fields Fields) Logger {
	return &stdLogger{l.entry.WithFields(fields)}
}

func NewNoneLogger() Logger {
	return noneLogger{}
}

type noneLogger struct{}

func (noneLogger) Debugf(format string, args ...interface{}) {}

func (noneLogger) Infof(format string, args ...interface{}) {}

func (noneLogger) Warningf(format string, args ...interface{}) {}

func (noneLogger) Errorf(format string, args ...interface{}) {}

func (l noneLogger) WithFields(fields Fields) Logger { return l }
