// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		route  Route
		reason string
	}{
		{"empty", "", RouteLocal, ReasonEmptyPrompt},
		{"whitespace", "  \n\t ", RouteLocal, ReasonEmptyPrompt},
		{"weather", "What's the weather in Paris?", RouteAPICheck, ReasonRealtime},
		{"crypto", "How much is bitcoin worth?", RouteAPICheck, ReasonRealtime},
		{"news", "Any breaking headlines?", RouteAPICheck, ReasonRealtime},
		{"recency word", "What happened recently in football?", RouteAPICheck, ReasonRealtime},
		{"specialized", "Explain quantum chromodynamics", RouteCloud, ReasonSpecialized},
		{"specialized mixed case", "Basics of Number Theory", RouteCloud, ReasonSpecialized},
		{"complex essay", "Write an essay about the French revolution", RouteCloud, ReasonTooComplex},
		{"complex proof", "Prove that there are infinitely many primes", RouteCloud, ReasonTooComplex},
		{"simple", "What is the capital of France?", RouteLocal, ReasonDefaultLocal},
		{"greeting", "hello there", RouteLocal, ReasonDefaultLocal},
		// Real-time intent outranks complexity.
		{"realtime beats complexity", "Write a detailed report on today's bitcoin market", RouteAPICheck, ReasonRealtime},
		// Substring matching keeps its false positives.
		{"substring false positive", "Explain the snowflake schema", RouteAPICheck, ReasonRealtime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.prompt)
			assert.Equal(t, tt.route, got.Route)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestClassifyLongPrompt(t *testing.T) {
	long := strings.Repeat("apple ", MaxLocalWordCount+1)
	assert.Equal(t, Classification{Route: RouteCloud, Reason: ReasonTooLong}, Classify(long))

	exact := strings.Repeat("apple ", MaxLocalWordCount)
	assert.Equal(t, Classification{Route: RouteLocal, Reason: ReasonDefaultLocal}, Classify(exact))
}

func TestClassifyTypographicApostrophe(t *testing.T) {
	assert.Equal(t, RouteAPICheck, Classify("Show me today’s news").Route)
	assert.Equal(t, IntentNews, DetectIntent("Show me today’s news"))
}

func TestClassifyFullWidth(t *testing.T) {
	// NFKC folds full-width letters.
	assert.Equal(t, RouteAPICheck, Classify("ｗｅａｔｈｅｒ please").Route)
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		prompt string
		want   Intent
	}{
		{"What's the weather in Paris?", IntentWeather},
		{"Will it rain tomorrow?", IntentWeather},
		{"Ethereum price", IntentCrypto},
		{"Top headline please", IntentNews},
		{"What is the capital of France?", IntentNone},
		{"", IntentNone},
		{"What's the latest?", IntentNone},
		// weather is scanned before crypto, crypto before news.
		{"Does rain move the bitcoin price?", IntentWeather},
		{"bitcoin news", IntentCrypto},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectIntent(tt.prompt))
		})
	}
}

func TestShowsUncertainty(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"I don't know.", true},
		{"I don’t know.", true},
		{"Paris", false},
		{"", true},
		{"   ", true},
		{"As an AI, I have no opinions.", true},
		{"I'm sorry, but that is outside my training.", true},
		{"Unfortunately, I cannot browse.", true},
		{"Python is a programming language.", false},
		{"The answer is 4.", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ShowsUncertainty(tt.text))
		})
	}
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "LOCAL", RouteLocal.String())
	assert.Equal(t, "CLOUD", RouteCloud.String())
	assert.Equal(t, "API_CHECK", RouteAPICheck.String())
	assert.Equal(t, "Route(9)", Route(9).String())
	assert.Equal(t, "CLOUD (specialized_domain)", Classification{RouteCloud, ReasonSpecialized}.String())
}

func TestBuildLocalPrompt(t *testing.T) {
	plain := BuildLocalPrompt("What is 2+2?", "")
	assert.True(t, strings.HasPrefix(plain, "What is 2+2?"))
	assert.Contains(t, plain, briefInstruction)

	grounded := BuildLocalPrompt("Weather in Paris?", "Weather: Clear, 15°C")
	assert.Contains(t, grounded, "Weather: Clear, 15°C")
	assert.Contains(t, grounded, "Question: Weather in Paris?")
	assert.Contains(t, grounded, groundedInstruction)
}
