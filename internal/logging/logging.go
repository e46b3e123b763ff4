// Package logging is the wiring layer over pkg/logger: it builds the
// process-wide *zap.Logger from config.Config.Logging and wraps it in a
// logger.ContextLogger, the "opaque sink" every core component logs
// through.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ndnrtc/internal/config"
	"ndnrtc/pkg/logger"
)

// Logger is re-exported so callers only need this import path.
type Logger = logger.ContextLogger

// New builds a *zap.Logger from cfg's Logging section (level + format)
// and wraps it in a ContextLogger.
func New(cfg *config.Config) (*Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Logging.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Logging.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	base, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: failed to build logger: %w", err)
	}
	return logger.NewContextLogger(base), nil
}
