// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// CryptoProvider reports spot prices from CoinDesk.
type CryptoProvider struct {
	fetcher
	apiKey string
	url    string
}

// Symbol picks the ticker named in prompt. BTC is the default.
func Symbol(prompt string) string {
	text := strings.ToLower(prompt)
	switch {
	case strings.Contains(text, "ethereum"):
		return "ETH"
	case strings.Contains(text, "doge"):
		return "DOGE"
	default:
		return "BTC"
	}
}

// Fetch implements Provider.
func (p *CryptoProvider) Fetch(ctx context.Context, prompt string) (string, error) {
	if msg := p.precheck(p.apiKey, EnvCoinDeskKey); msg != "" {
		return msg, nil
	}

	symbol := Symbol(prompt)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+p.apiKey)

	status, body, err := p.get(ctx, fmt.Sprintf("%s/%s.json", p.url, symbol), header)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return p.failed(status, body), nil
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		p.record("error")
		return "", fmt.Errorf("failed to parse crypto response: %w", err)
	}

	bpi, _ := data["bpi"].(map[string]any)
	usd, _ := bpi["USD"].(map[string]any)
	price, ok := usd["rate"]
	if !ok || price == nil {
		p.record("unexpected_format")
		return fmt.Sprintf("Unexpected response format: %s", strings.TrimSpace(string(body))), nil
	}

	p.record("ok")
	return fmt.Sprintf("%s is currently trading at $%v USD.", symbol, price), nil
}
