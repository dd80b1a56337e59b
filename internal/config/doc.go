// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for seven.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: main configuration structure with all settings
//   - LocalConfig: Lemonade (cheap backend) connection and retry policy
//   - CloudConfig: OpenAI-compatible (expensive backend) connection
//   - RealtimeConfig: weather, crypto and news provider credentials
//   - EnergyConfig: energy profile selection for the annotator
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LEMONADE_*, SEVEN_*, provider keys)
//   - ~/.seven/config.toml
//   - ~/.seven/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	timeout := cfg.Local.Timeout()
package config
