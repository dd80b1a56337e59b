// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// headlineCount is how many titles are requested and shown.
const headlineCount = 3

// NoHeadlinesMessage is returned when the feed is empty.
const NoHeadlinesMessage = "No headlines available right now."

// NewsProvider lists top US headlines from NewsAPI.
type NewsProvider struct {
	fetcher
	apiKey string
	url    string
}

type newsResponse struct {
	Articles []struct {
		Title string `json:"title"`
	} `json:"articles"`
}

// Fetch implements Provider. The prompt does not narrow the headlines.
func (p *NewsProvider) Fetch(ctx context.Context, _ string) (string, error) {
	if msg := p.precheck(p.apiKey, EnvNewsKey); msg != "" {
		return msg, nil
	}

	q := url.Values{}
	q.Set("country", "us")
	q.Set("pageSize", fmt.Sprint(headlineCount))
	q.Set("apiKey", p.apiKey)

	status, body, err := p.get(ctx, p.url+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return p.failed(status, body), nil
	}

	var data newsResponse
	if err := json.Unmarshal(body, &data); err != nil {
		p.record("error")
		return "", fmt.Errorf("failed to parse news response: %w", err)
	}

	titles := make([]string, 0, headlineCount)
	for _, a := range data.Articles {
		if len(titles) == headlineCount {
			break
		}
		titles = append(titles, a.Title)
	}

	p.record("ok")
	if len(titles) == 0 {
		return NoHeadlinesMessage, nil
	}
	return "Here are the top headlines:\n- " + strings.Join(titles, "\n- "), nil
}
