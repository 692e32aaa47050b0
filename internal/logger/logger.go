// Package logger builds the zap loggers shared by the checkout service and
// its adapters. Every entry carries the service name, and production output
// is JSON with ISO-8601 timestamps under the "timestamp" key.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the production logger for serviceName, or the console logger
// with colored levels and debug output when development is set.
func New(serviceName string, development bool) *zap.Logger {
	if development {
		return NewDevelopmentLogger(serviceName)
	}
	return NewLogger(serviceName)
}

// NewLogger returns a JSON logger at info level.
func NewLogger(serviceName string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return build(cfg, serviceName)
}

// NewDevelopmentLogger returns a human-readable logger at debug level.
func NewDevelopmentLogger(serviceName string) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return build(cfg, serviceName)
}

// build falls back to a no-op logger when cfg cannot open its outputs, so a
// broken log sink never keeps a checkout from starting.
func build(cfg zap.Config, serviceName string) *zap.Logger {
	cfg.InitialFields = map[string]interface{}{"service": serviceName}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// OrNop returns l, or a no-op logger when l is nil. Constructors taking an
// optional logger use it so callers may pass nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
