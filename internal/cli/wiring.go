// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"time"

	"github.com/jeranaias/seven/internal/cloud"
	"github.com/jeranaias/seven/internal/config"
	"github.com/jeranaias/seven/internal/lemonade"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/realtime"
	"github.com/jeranaias/seven/internal/router"
	"github.com/jeranaias/seven/internal/telemetry"
)

// stack is a fully wired router together with the clients behind it.
type stack struct {
	local  *lemonade.Client
	cloud  *cloud.Client
	router *router.Router
}

// buildStack wires both backends, the real-time providers and the router
// from cfg.
func buildStack(cfg *config.Config) (*stack, error) {
	log := logging.Component("cli")

	local := lemonade.NewClientWithConfig(&lemonade.ClientConfig{
		BaseURL:    cfg.Local.BaseURL,
		Model:      cfg.Local.Model,
		Recipe:     cfg.Local.Recipe,
		Device:     cfg.Local.Device,
		Timeout:    cfg.Local.Timeout(),
		MaxRetries: cfg.Local.MaxRetries,
		Backoff:    cfg.Local.Backoff(),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Debug().Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("retrying local backend")
		},
	})

	remote := cloud.NewClientWithConfig(&cloud.ClientConfig{
		BaseURL: cfg.Cloud.BaseURL,
		Model:   cfg.Cloud.Model,
		APIKey:  cfg.Cloud.APIKey,
		Timeout: cfg.Cloud.Timeout(),
	})

	providers := realtime.New(realtime.Config{
		OpenWeatherKey: cfg.Realtime.OpenWeatherKey,
		CoinDeskKey:    cfg.Realtime.CoinDeskKey,
		NewsKey:        cfg.Realtime.NewsKey,
		WeatherURL:     cfg.Realtime.WeatherURL,
		CryptoURL:      cfg.Realtime.CryptoURL,
		NewsURL:        cfg.Realtime.NewsURL,
		DefaultCity:    cfg.Realtime.DefaultCity,
		RatePerMinute:  cfg.Realtime.RatePerMinute,
		Timeout:        cfg.Realtime.Timeout(),
	})

	rt, err := router.New(router.Config{
		Local:            local,
		Cloud:            remote,
		Providers:        router.ProvidersFrom(providers),
		DisableSynthesis: !cfg.Routing.SynthesizeRealtime,
		LocalProfile:     cfg.Energy.LocalProfile,
		CloudProfile:     cfg.Energy.CloudProfile,
		DefaultTokens:    cfg.Energy.DefaultTokens,
	})
	if err != nil {
		return nil, err
	}
	return &stack{local: local, cloud: remote, router: rt}, nil
}

// routeOptions returns the per-call defaults configured in [routing].
func routeOptions(cfg *config.Config) router.Options {
	opts := router.DefaultOptions()
	opts.Temperature = cfg.Routing.Temperature
	opts.MaxTokens = cfg.Routing.MaxTokens
	opts.EnableRealtime = cfg.Routing.EnableRealtime
	opts.AutoEscalate = cfg.Routing.AutoEscalate
	return opts
}

// openLedger opens the configured ledger. It returns nil, nil when the
// ledger is disabled.
func openLedger(cfg *config.Config) (*telemetry.Ledger, error) {
	if !cfg.Telemetry.Enabled {
		return nil, nil
	}
	path := cfg.Telemetry.DBPath
	if path == "" {
		p, err := telemetry.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return telemetry.Open(path)
}
