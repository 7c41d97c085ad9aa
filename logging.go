/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger: console output with ISO-8601
// timestamps and capital levels, debug level behind --verbose, optionally
// teeing to a logfile.
func newLogger(cfg *Config) (*zap.SugaredLogger, error) {
	level := zap.InfoLevel
	if cfg.verbose {
		level = zap.DebugLevel
	}

	zcfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          "console",
		DisableStacktrace: true,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if cfg.logFile != "" {
		zcfg.OutputPaths = append(zcfg.OutputPaths, cfg.logFile)
		zcfg.ErrorOutputPaths = append(zcfg.ErrorOutputPaths, cfg.logFile)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}
