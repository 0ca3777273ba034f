package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Context keys with special meaning for channel loggers.
const (
	// ContextException holds the error a log line is about.
	ContextException = "exception"
	// ContextPrivate marks entries that carry sensitive data.
	ContextPrivate = "private"

	// FieldChannel is the logrus field naming the channel of an entry.
	FieldChannel = "channel"
)

// Logger writes messages to one named channel.
type Logger interface {
	Error(message string, context map[string]interface{})
	Warning(message string, context map[string]interface{})
}

// Factory hands out channel loggers that share one logrus logger.
type Factory struct {
	base *logrus.Logger
}

// NewFactory returns a factory writing through base, or through the
// standard logger when base is nil.
func NewFactory(base *logrus.Logger) *Factory {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &Factory{base: base}
}

// GetLogger returns the logger for channel.
func (f *Factory) GetLogger(channel string) Logger {
	return &ChannelLogger{entry: f.base.WithField(FieldChannel, channel)}
}

// ChannelLogger is a logrus entry bound to a channel.
type ChannelLogger struct {
	entry *logrus.Entry
}

func (l *ChannelLogger) Error(message string, context map[string]interface{}) {
	l.with(context).Error(message)
}

func (l *ChannelLogger) Warning(message string, context map[string]interface{}) {
	l.with(context).Warn(message)
}

func (l *ChannelLogger) with(context map[string]interface{}) *logrus.Entry {
	entry := l.entry
	for key, value := range context {
		if key == ContextException {
			if err, ok := value.(error); ok {
				entry = entry.WithError(err)
				continue
			}
		}
		entry = entry.WithField(key, value)
	}
	return entry
}

// Setup configures the standard logger from a level and format name. An
// unknown level falls back to debug.
func Setup(levelStr, format string) {
	configure(logrus.StandardLogger(), levelStr, format)
}

func configure(log *logrus.Logger, levelStr, format string) {
	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}
