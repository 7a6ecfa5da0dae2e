// Package logging builds the process-wide structured logger, threaded
// into every component as a *zap.SugaredLogger (teacher's log.Printf
// call sites translated to leveled, field-based logging per SPEC_FULL.md
// §3.1).
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production zap logger (JSON encoding, ISO8601 timestamps)
// unless dev is true, in which case it uses zap's human-readable
// console encoding for local runs.
func New(dev bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return logger.Sugar(), nil
}

// WithComponent returns a child logger tagged with "component", the
// convention every package in this engine logs under (feed, parser,
// store, search, sync, scheduler, progress, api, job).
func WithComponent(log *zap.SugaredLogger, component string) *zap.SugaredLogger {
	return log.With("component", component)
}
