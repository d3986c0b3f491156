// Package zerologlog registers the zerolog-backed Logger under the
// registry's logger category as type "zerolog".
package zerologlog

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog"

	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/registry"
)

type args struct {
	Level string `json:"level"`
}

type zerologLogger struct {
	l zerolog.Logger
}

// New builds a zerolog-backed Logger writing to stderr.
func New(level string) logging.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	return &zerologLogger{l: base}
}

func (z *zerologLogger) Debug(msg string, fields ...any) { z.event(z.l.Debug(), msg, fields) }
func (z *zerologLogger) Info(msg string, fields ...any)  { z.event(z.l.Info(), msg, fields) }
func (z *zerologLogger) Warn(msg string, fields ...any)  { z.event(z.l.Warn(), msg, fields) }
func (z *zerologLogger) Error(msg string, fields ...any) { z.event(z.l.Error(), msg, fields) }

func (z *zerologLogger) event(e *zerolog.Event, msg string, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

func (z *zerologLogger) With(fields ...any) logging.Logger {
	ctx := z.l.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{l: ctx.Logger()}
}

// Factory is installed into the registry under (logger, "zerolog").
func Factory(_ any, _ string, raw json.RawMessage) (any, error) {
	var a args
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
	}
	return New(a.Level), nil
}

// Register installs the zerolog factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryLogger, "zerolog", Factory)
}
