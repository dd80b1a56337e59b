// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// cityPattern takes everything after "in " up to the first non-letter.
var cityPattern = regexp.MustCompile(`in ([A-Za-z\s]+)`)

// WeatherProvider reports current conditions from OpenWeatherMap.
type WeatherProvider struct {
	fetcher
	apiKey      string
	url         string
	defaultCity string
}

// City extracts the city named in prompt, or the default.
func (p *WeatherProvider) City(prompt string) string {
	if m := cityPattern.FindStringSubmatch(prompt); m != nil {
		if city := strings.TrimSpace(m[1]); city != "" {
			return city
		}
	}
	return p.defaultCity
}

type weatherResponse struct {
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Fetch implements Provider.
func (p *WeatherProvider) Fetch(ctx context.Context, prompt string) (string, error) {
	if msg := p.precheck(p.apiKey, EnvOpenWeatherKey); msg != "" {
		return msg, nil
	}

	city := p.City(prompt)
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", p.apiKey)
	q.Set("units", "metric")

	status, body, err := p.get(ctx, p.url+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return p.failed(status, body), nil
	}

	var data weatherResponse
	if err := json.Unmarshal(body, &data); err != nil {
		p.record("error")
		return "", fmt.Errorf("failed to parse weather response: %w", err)
	}
	if data.Main == nil || data.Main.Temp == nil || len(data.Weather) == 0 {
		p.record("error")
		return "", errors.New("weather response missing temperature or description")
	}

	p.record("ok")
	temp := strconv.FormatFloat(*data.Main.Temp, 'f', -1, 64)
	return fmt.Sprintf("The weather in %s is %s with %s°C.", city, data.Weather[0].Description, temp), nil
}
