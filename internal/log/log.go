package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// This package is a thin facade over zap so that callers can log with
// positional key-value pairs without threading a logger through every
// constructor. The level can be raised to debug via SetDebug.

var (
	sugar      *zap.SugaredLogger
	level      zap.AtomicLevel
	loggerOnce sync.Once
)

func initLogger() {
	loggerOnce.Do(func() {
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		logger, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			// zap's production config cannot realistically fail to build;
			// fall back to a no-op logger rather than crashing the process.
			logger = zap.NewNop()
		}
		sugar = logger.Sugar()
	})
}

// SetDebug lowers the minimum level to debug.
func SetDebug() {
	initLogger()
	level.SetLevel(zapcore.DebugLevel)
}

func Debug(msg string, kv ...any) {
	initLogger()
	sugar.Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	sugar.Infow(msg, kv...)
}

// Error logs msg with err prepended to the key-value list.
func Error(msg string, err error, kv ...any) {
	initLogger()
	extended := append([]any{"err", err}, kv...)
	sugar.Errorw(msg, extended...)
}

// Sync flushes buffered log entries. Call on shutdown.
func Sync() {
	initLogger()
	_ = sugar.Sync()
}
