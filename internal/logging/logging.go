// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the process-wide zerolog logger.
//
// Packages obtain a component-scoped logger with Component; the CLI calls
// Setup once after the configuration is loaded.
//
//	closer, err := logging.Setup(&logging.Config{Level: "debug", Format: logging.FormatJSON})
//	defer closer.Close()
//	logger := logging.Component("router")
//	logger.Info().Str("route", "LOCAL").Msg("classified")
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds logger configuration.
type Config struct {
	Level  string    // debug, info, warn, error, disabled (default: warn)
	Format string    // console or json (default: console)
	File   string    // optional log file, appended in JSON
	Out    io.Writer // console/json destination (default: os.Stderr)
}

// DefaultConfig returns the CLI defaults: quiet console logging to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "warn",
		Format: FormatConsole,
		Out:    os.Stderr,
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to warn.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the global logger described by cfg. The returned closer
// releases the log file, if any.
func Setup(cfg *Config) (io.Closer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	var primary io.Writer = out
	if cfg.Format != FormatJSON {
		primary = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	writers := []io.Writer{primary}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().
		Timestamp().
		Str("app", "seven").
		Logger()

	return closer, nil
}

// Component returns the global logger with the component field set.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
