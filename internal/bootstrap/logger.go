package bootstrap

import (
	"github.com/tonsurance/btcfloat/internal/core"
	"github.com/tonsurance/btcfloat/pkg/logging"
)

// InitLogger builds the zap-backed structured logger from configuration.
func InitLogger(cfg *Config) (core.ILogger, error) {
	return logging.NewZapLogger(cfg.System.LogLevel)
}
