package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/wirebird/wirebird/src/config"
)

// createLogger builds the process logger from the logging config. CLI
// flags override the configured level and format when set.
func createLogger(cfg config.LoggingConfig, cli *CLI) *slog.Logger {
	level := cfg.Level
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	format := cfg.Format
	if cli.LogFormat != "" {
		format = cli.LogFormat
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(level),
		}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLogLevel(level),
	}))
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
