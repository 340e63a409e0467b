// Package logging builds zap loggers and strips credentials from text
// before it is logged.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the logger flavour and level.
type LogConfig struct {
	Level       string `yaml:"level" env:"SILENCE_LOG_LEVEL" env-default:"info"`
	Development bool   `yaml:"development" env:"SILENCE_LOG_DEVELOPMENT" env-default:"false"`
}

// New builds a zap logger for cfg. An empty level means info.
func New(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}
