package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	once   sync.Once
)

// GetLogger returns zap.Logger instance, but using singleton pattern creates only one reusable instace
// development config by default, production (json) config when APP_ENV=production
func GetLogger() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
			cfg = zap.NewProductionConfig()
			level.SetLevel(zapcore.InfoLevel)
		}
		cfg.Level = level

		var err error
		logger, err = cfg.Build()
		if err != nil {
			panic("failed logger setup : " + err.Error())
		}
	})
	return logger
}

// SetLevel changes the level of the shared logger at runtime, unknown levels are ignored
func SetLevel(lvl string) {
	parsed, err := zapcore.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		GetLogger().Warn("Unknown log level, keeping current", zap.String("level", lvl))
		return
	}
	level.SetLevel(parsed)
}
