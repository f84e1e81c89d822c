// Package logx builds the zap.Logger used throughout mongosrv, writing a
// human-readable console encoding to stderr and (when a path is configured)
// a JSON encoding to a log file, matching the dual-sink setup the teacher
// project's log package establishes for its own CLI.
package logx

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-leaning logger. When logFilePath is empty, only
// the console sink is attached.
func New(debug bool, logFilePath string) (*zap.Logger, *os.File, error) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
	}

	var logFile *os.File
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		if err := os.Chmod(logFilePath, 0644); err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("failed to chmod log file: %w", err)
		}
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.TimeKey = "ts"
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		jsonEncoder := zapcore.NewJSONEncoder(jsonCfg)
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.Lock(f), level))
		logFile = f
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, logFile, nil
}
