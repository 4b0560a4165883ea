package main

import (
	"fmt"

	"go.uber.org/zap"
)

// newLogger builds a JSON logger, or a human readable one for "console".
// Logs go to stderr so console output on stdout stays clean.
func newLogger(format, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q (json or console)", format)
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = lvl
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build(zap.Fields(zap.String("component", "pganomaly")))
}
