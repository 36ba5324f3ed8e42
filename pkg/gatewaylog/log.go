// Package gatewaylog builds the gateway's base structured logger.
//
// Grounded on the teacher's pkg/operator.NewLogger/ignoreDebugEvents: a zap
// logger bridged through go-logr so the rest of the gateway depends only on
// logr.Logger, never on zap directly.
package gatewaylog

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type loggerKey struct{}

// New builds the base logger for the named component. Development builds get
// a human-readable console encoder; production builds emit JSON.
func New(component string, development bool) logr.Logger {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zl, err := cfg.Build()
	if err != nil {
		// Logging can't come up; fall back to a no-op rather than panic the process.
		zl = zap.NewNop()
	}
	return zapr.NewLogger(zl).WithName(component)
}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger logr.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a discard logger if none was set.
func FromContext(ctx context.Context) logr.Logger {
	if l, ok := ctx.Value(loggerKey{}).(logr.Logger); ok {
		return l
	}
	return logr.Discard()
}
