// Package zaplog registers the zap-backed Logger under the registry's
// logger category as type "zap" — the node's default logger.
package zaplog

import (
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hiveforge/hived/internal/logging"
	"github.com/hiveforge/hived/internal/registry"
)

type args struct {
	Level string `json:"level"`
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// New builds a zap-backed Logger. level is parsed via zapcore; an empty or
// unrecognized level defaults to info.
func New(level string) logging.Logger {
	lvl := zapcore.InfoLevel
	_ = lvl.UnmarshalText([]byte(level))
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return &zapLogger{l: base.Sugar()}
}

func (z *zapLogger) Debug(msg string, fields ...any) { z.l.Debugw(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...any)  { z.l.Infow(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...any)  { z.l.Warnw(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...any) { z.l.Errorw(msg, fields...) }

func (z *zapLogger) With(fields ...any) logging.Logger {
	return &zapLogger{l: z.l.With(fields...)}
}

// Factory is installed into the registry under (logger, "zap").
func Factory(_ any, _ string, raw json.RawMessage) (any, error) {
	var a args
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
	}
	return New(a.Level), nil
}

// Register installs the zap factory into r.
func Register(r *registry.Registry) error {
	return r.Register(registry.CategoryLogger, "zap", Factory)
}
