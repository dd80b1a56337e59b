// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/metrics"
	"github.com/jeranaias/seven/internal/offline"
)

// Environment variables holding provider credentials.
const (
	EnvOpenWeatherKey = "OPENWEATHER_API_KEY"
	EnvCoinDeskKey    = "COINDESK_API_KEY"
	EnvNewsKey        = "NEWS_API_KEY"
)

// Default endpoints.
const (
	DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultCryptoURL  = "https://api.coindesk.com/v1/bpi/currentprice"
	DefaultNewsURL    = "https://newsapi.org/v2/top-headlines"
	DefaultCity       = "Toronto"
	DefaultTimeout    = 10 * time.Second

	// MaxResponseSize caps provider bodies.
	MaxResponseSize = 1024 * 1024
)

// Fixed summaries for calls that never reach the network.
const (
	OfflineMessage = "Real-time data is unavailable in offline mode."
	BusyFormat     = "%s API is busy right now, please try again in a moment."
)

// Provider fetches a live-data summary relevant to prompt.
type Provider interface {
	// Name is the display label, e.g. "Weather".
	Name() string
	Fetch(ctx context.Context, prompt string) (string, error)
}

// Config configures all providers.
type Config struct {
	OpenWeatherKey string
	CoinDeskKey    string
	NewsKey        string

	WeatherURL  string
	CryptoURL   string
	NewsURL     string
	DefaultCity string

	// RatePerMinute throttles each provider separately; 0 disables throttling.
	RatePerMinute int
	Timeout       time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Providers groups the three providers.
type Providers struct {
	Weather *WeatherProvider
	Crypto  *CryptoProvider
	News    *NewsProvider
}

// New builds every provider from cfg. Zero fields take their defaults.
func New(cfg Config) *Providers {
	if cfg.WeatherURL == "" {
		cfg.WeatherURL = DefaultWeatherURL
	}
	if cfg.CryptoURL == "" {
		cfg.CryptoURL = DefaultCryptoURL
	}
	if cfg.NewsURL == "" {
		cfg.NewsURL = DefaultNewsURL
	}
	if cfg.DefaultCity == "" {
		cfg.DefaultCity = DefaultCity
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	base := func(name string) fetcher {
		return fetcher{
			name:    name,
			client:  client,
			limiter: newLimiter(cfg.RatePerMinute),
			log:     logging.Component("realtime").With().Str("provider", name).Logger(),
		}
	}

	return &Providers{
		Weather: &WeatherProvider{fetcher: base("Weather"), apiKey: cfg.OpenWeatherKey, url: cfg.WeatherURL, defaultCity: cfg.DefaultCity},
		Crypto:  &CryptoProvider{fetcher: base("Crypto"), apiKey: cfg.CoinDeskKey, url: cfg.CryptoURL},
		News:    &NewsProvider{fetcher: base("News"), apiKey: cfg.NewsKey, url: cfg.NewsURL},
	}
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// =============================================================================
// SHARED FETCH
// =============================================================================

// fetcher holds what every provider needs to make a guarded GET.
type fetcher struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// Name implements Provider.
func (f *fetcher) Name() string { return f.name }

// precheck returns a non-empty summary when the call must not go out.
func (f *fetcher) precheck(apiKey, envVar string) string {
	if err := offline.CheckRealtimeAllowed(); err != nil {
		f.record("offline")
		return OfflineMessage
	}
	if apiKey == "" {
		f.record("missing_key")
		return fmt.Sprintf("Missing %s environment variable.", envVar)
	}
	if !f.limiter.Allow() {
		f.record("rate_limited")
		f.log.Warn().Msg("provider call throttled")
		return fmt.Sprintf(BusyFormat, f.name)
	}
	return ""
}

// get performs the GET and returns the status and body.
func (f *fetcher) get(ctx context.Context, rawURL string, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.record("error")
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.record("error")
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		f.record("error")
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	f.log.Debug().Int("status", resp.StatusCode).Dur("latency", time.Since(start)).Msg("provider response")
	return resp.StatusCode, body, nil
}

// failed formats a non-200 reply.
func (f *fetcher) failed(status int, body []byte) string {
	f.record("http_error")
	return fmt.Sprintf("%s API failed: %d, %s", f.name, status, string(body))
}

func (f *fetcher) record(outcome string) {
	metrics.ProviderCalls.WithLabelValues(f.name, outcome).Inc()
}
