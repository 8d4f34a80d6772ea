// Package logger wraps zap for structured logging.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log     *zap.Logger
	once    sync.Once
	logFile = "driftscan.log" // Default log file
)

// InitLogger initializes the Zap logger with structured logging.
func InitLogger() {
	once.Do(func() {
		level := zap.NewAtomicLevelAt(zap.InfoLevel)

		// File output gets the JSON encoder for later processing.
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		file, _ := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		fileCore := zapcore.NewCore(fileEncoder, zapcore.AddSync(file), level)

		// Console output stays human readable.
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level)

		core := zapcore.NewTee(consoleCore, fileCore)

		log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	})
}

// SetLogPath overrides the log file destination. It must be called
// before InitLogger to have any effect.
func SetLogPath(path string) {
	logFile = path
}

// ResetLogger clears the global logger so it can be reinitialized.
func ResetLogger() {
	Sync()
	log = nil
	once = sync.Once{}
}

// GetLogger provides access to the initialized logger.
func GetLogger() *zap.Logger {
	if log == nil {
		InitLogger()
	}
	return log
}

// Sync ensures buffered logs are written before the application exits.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
