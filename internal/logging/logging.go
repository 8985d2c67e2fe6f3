// Package logging defines the structured logger used across the directory
// packages and its logrus-backed implementation.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger receives a message followed by alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Noop returns a Logger that discards everything.
func Noop() Logger { return noopLogger{} }

// OrNoop returns l, or a discarding logger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// Logrus adapts a logrus entry to Logger.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps l. A nil l uses the logrus standard logger.
func NewLogrus(l *logrus.Logger) *Logrus {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Logrus{entry: logrus.NewEntry(l)}
}

// With returns a child logger that always carries the given pairs.
func (l *Logrus) With(args ...any) *Logrus {
	return &Logrus{entry: l.entry.WithFields(Fields(args))}
}

func (l *Logrus) Debug(msg string, args ...any) { l.entry.WithFields(Fields(args)).Debug(msg) }
func (l *Logrus) Info(msg string, args ...any)  { l.entry.WithFields(Fields(args)).Info(msg) }
func (l *Logrus) Warn(msg string, args ...any)  { l.entry.WithFields(Fields(args)).Warn(msg) }
func (l *Logrus) Error(msg string, args ...any) { l.entry.WithFields(Fields(args)).Error(msg) }

// Fields converts alternating key/value pairs into logrus fields. A trailing
// key without a value is stored under "!BADKEY".
func Fields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, isErr := args[i+1].(error); isErr {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}

// ParseLevel maps a level name to a logrus level, defaulting to info.
func ParseLevel(name string) logrus.Level {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
