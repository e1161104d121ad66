package logging

import (
	"go.uber.org/zap"
)

// Logger is the leveled, structured logger used across kdextract. The `f` variants format like
// `fmt.Sprintf`, the `w` variants take alternating key/value pairs.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Fatalw(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	// Sublogger returns a logger named `<parent>.<subname>` that shares the parent's appenders.
	Sublogger(subname string) Logger
	// WithFields returns a logger that attaches the given key/value pairs to every entry.
	WithFields(keysAndValues ...interface{}) Logger
	AddAppender(appender Appender)
	AsZap() *zap.SugaredLogger
	Sync() error
}
