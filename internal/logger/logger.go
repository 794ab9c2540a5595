// Package logger builds the zap logger shared by the server, the client and
// the background consumers.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger for env "prod"/"production" and a
// colourised development logger otherwise.  level overrides the default
// level when it parses ("debug", "info", "warn", "error").
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config

	if isProduction(env) {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	return cfg.Build()
}

// Must is New for main packages: it falls back to a no-op logger when the
// configuration cannot be built.
func Must(env, level string) *zap.Logger {
	l, err := New(env, level)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func isProduction(env string) bool {
	switch strings.ToLower(env) {
	case "prod", "production":
		return true
	}
	return false
}
