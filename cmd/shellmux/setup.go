package main

import (
	"github.com/tturner/shellmux/internal/config"
	"github.com/tturner/shellmux/internal/logging"
)

// buildLogger constructs the process logger from config with optional CLI
// overrides for level and file.
func buildLogger(cfg *config.Config, levelOverride, fileOverride string) (*logging.Logger, error) {
	levelStr := cfg.Log.Level
	if levelOverride != "" {
		levelStr = levelOverride
	}
	logFile := cfg.Log.File
	if fileOverride != "" {
		logFile = fileOverride
	}
	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	return logging.New(level, logFile)
}
