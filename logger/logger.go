// Package logger wraps zap for structured logging.
package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// mu guards log, file and logFile.
var (
	log     *zap.Logger
	mu      sync.Mutex
	file    *os.File
	logFile = "deltaflow.log" // Default log file
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// SetLogPath sets the JSON log file. It only takes effect before the
// logger is initialized.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logFile = path
}

// SetLevel changes the minimum level of both outputs. It can be called at
// any time; unknown names leave the level unchanged.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// InitLogger initializes the Zap logger with structured logging.
func InitLogger() {
	mu.Lock()
	defer mu.Unlock()
	initLocked()
}

func initLocked() {
	if log != nil {
		return
	}

	// Configure console logging
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level)}

	// Configure file logging; the console still works if the file cannot be opened
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			file = f
			fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
			cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level))
		}
	}

	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// GetLogger provides access to the initialized logger.
func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	initLocked()
	return log
}

// Sync ensures buffered logs are written before the application exits.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}

// ResetLogger closes the log file and lets the next call initialize a new
// logger. Intended for tests.
func ResetLogger() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
	if file != nil {
		_ = file.Close()
		file = nil
	}
	log = nil
	level.SetLevel(zap.InfoLevel)
}
