// Package logging builds the process logger and logs coded errors.
package logging

import (
	"github.com/samber/oops"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger for production and a console logger otherwise.
func New(env, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "LOG_LEVEL").Wrap(err)
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// ErrorFields flattens an error into zap fields. Oops errors contribute
// their code and context.
func ErrorFields(err error) []zap.Field {
	fields := []zap.Field{zap.Error(err)}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			fields = append(fields, zap.Any("code", code))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields = append(fields, zap.Any("context", ctx))
		}
	}
	return fields
}

// LogError logs err at error level with its structured context.
func LogError(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	logger.Error(msg, append(ErrorFields(err), fields...)...)
}
