// Package logruslog registers the logrus-backed Logger under the
// registry's logger category as type "logrus".
package logruslog

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/registry"
)

type args struct {
	Level string `json:"level"`
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New builds a logrus-backed Logger with JSON formatting.
func New(level string) logging.Logger {
	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

func fieldsOf(args []any) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *logrusLogger) Debug(msg string, fields ...any) { l.entry.WithFields(fieldsOf(fields)).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields ...any)  { l.entry.WithFields(fieldsOf(fields)).Info(msg) }
func (l *logrusLogger) Warn(msg string, fields ...any)  { l.entry.WithFields(fieldsOf(fields)).Warn(msg) }
func (l *logrusLogger) Error(msg string, fields ...any) { l.entry.WithFields(fieldsOf(fields)).Error(msg) }

func (l *logrusLogger) With(fields ...any) logging.Logger {
	return &logrusLogger{entry: l.entry.WithFields(fieldsOf(fields))}
}

// Factory is installed into the registry under (logger, "logrus").
func Factory(_ any, _ string, raw json.RawMessage) (any, error) {
	var a args
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
	}
	return New(a.Level), nil
}

// Register installs the logrus factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryLogger, "logrus", Factory)
}
