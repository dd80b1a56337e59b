// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/realtime"
)

// ProvidersFrom maps each intent to its realtime provider.
func ProvidersFrom(p *realtime.Providers) map[Intent]realtime.Provider {
	if p == nil {
		return nil
	}
	out := make(map[Intent]realtime.Provider, 3)
	if p.Weather != nil {
		out[IntentWeather] = p.Weather
	}
	if p.Crypto != nil {
		out[IntentCrypto] = p.Crypto
	}
	if p.News != nil {
		out[IntentNews] = p.News
	}
	return out
}

// augment answers an API_CHECK prompt with the local backend grounded on
// live data. It returns an error only when the local backend itself failed
// on the no-data path; a failed synthesis degrades to the raw summary.
func (r *Router) augment(ctx context.Context, prompt string, req backend.Request, log zerolog.Logger) (*backend.Response, Intent, error) {
	intent := DetectIntent(prompt)

	var summary string
	if intent != IntentNone {
		summary = r.fetch(ctx, intent, prompt, log)
	}

	if summary != "" {
		if r.disableSynthesis {
			log.Info().Str("intent", string(intent)).Msg("synthesis disabled, returning provider data")
			return apiDirect(prompt, summary), intent, nil
		}

		grounded := req
		grounded.Prompt = BuildLocalPrompt(prompt, intent.Label()+": "+summary)
		resp, err := r.local.Invoke(ctx, grounded)
		if err != nil {
			log.Warn().Err(err).Msg("synthesis via local backend failed, returning provider data")
			return apiDirect(prompt, summary), intent, nil
		}
		return resp, intent, nil
	}

	log.Info().Str("intent", string(intent)).Msg("no real-time data, answering from general knowledge")
	fallback := req
	fallback.Prompt = BuildLocalPrompt(withUnavailableNote(prompt), "")
	resp, err := r.local.Invoke(ctx, fallback)
	return resp, intent, err
}

// fetch calls the provider for intent. Errors and panics become inline
// "<Intent> API error: ..." strings.
func (r *Router) fetch(ctx context.Context, intent Intent, prompt string, log zerolog.Logger) (summary string) {
	provider, ok := r.providers[intent]
	if !ok || provider == nil {
		log.Info().Str("intent", string(intent)).Msg("no provider registered")
		return ""
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Warn().Interface("panic", rec).Str("intent", string(intent)).Msg("provider panicked")
			summary = fmt.Sprintf("%s API error: %v", intent.Label(), rec)
		}
	}()

	out, err := provider.Fetch(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("intent", string(intent)).Msg("provider failed")
		return fmt.Sprintf("%s API error: %v", intent.Label(), err)
	}
	return strings.TrimSpace(out)
}

// apiDirect wraps unsynthesized provider data as a response.
func apiDirect(prompt, summary string) *backend.Response {
	return &backend.Response{
		Prompt: prompt,
		Text:   summary,
		Model:  backend.ModelAPIDirect,
		Raw:    map[string]any{},
	}
}
