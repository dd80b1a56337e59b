// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/seven/internal/util"
)

// ============================================================================
// KEYWORD TABLES
// ============================================================================

// MaxLocalWordCount is the longest prompt, in words, kept on the local backend.
const MaxLocalWordCount = 150

// intentKeywords is scanned in order: weather, crypto, news.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentWeather, []string{"weather", "temperature", "forecast", "rain", "snow", "humidity", "wind"}},
	{IntentCrypto, []string{
		"crypto", "bitcoin", "btc", "ethereum", "eth", "solana", "sol",
		"dogecoin", "doge", "token", "coin", "price",
	}},
	{IntentNews, []string{"news", "headline", "breaking", "latest news", "today's news", "current events"}},
}

// realtimeKeywords holds time-sensitive phrases plus every intent keyword.
var realtimeKeywords = func() []string {
	words := []string{
		"current", "latest", "today", "now", "right now", "this week",
		"this month", "recent", "trading", "market cap", "stock",
	}
	for _, group := range intentKeywords {
		words = append(words, group.keywords...)
	}
	return words
}()

var specializedDomains = []string{
	// sciences
	"quantum chromodynamics", "string theory", "general relativity",
	"thermodynamics", "organic chemistry",
	// mathematics
	"topology", "number theory", "abstract algebra",
	"differential geometry", "complex analysis",
	// systems
	"blockchain consensus", "zero-knowledge proof",
	"compiler optimization", "kernel development",
}

var complexityMarkers = []string{
	// long-form writing
	"write a detailed", "write an essay", "write a report",
	"write a paper", "write an article", "draft a",
	// analysis
	"comprehensive analysis", "detailed analysis", "in-depth analysis",
	"analyze in detail", "deep dive into",
	// comparison
	"compare and contrast", "compare all", "differences between",
	"similarities and differences",
	// tutorials
	"step-by-step tutorial", "step by step", "walk me through",
	"guide me through", "explain step by step",
	// depth
	"explain in depth", "explain thoroughly", "explain comprehensively",
	"provide a detailed explanation", "go into detail",
	// maths and derivations
	"quantum", "derive the", "prove that", "proof of",
	"theorem", "algorithm analysis", "big o notation",
	"differential equation", "integral of",
	// enumeration
	"list all", "enumerate all", "every single", "all possible",
	// creative
	"write a story", "write a poem", "create a narrative",
	// research
	"research on", "literature review", "survey of",
}

// ============================================================================
// CLASSIFICATION FUNCTIONS
// ============================================================================

// apostrophes folds typographic apostrophes so "don’t" matches "don't".
var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'", "＇", "'")

// normalize prepares text for keyword matching: NFKC, folded apostrophes,
// lower case. A Caser is not safe for concurrent use, so one is built per call.
func normalize(s string) string {
	s = norm.NFKC.String(s)
	s = apostrophes.Replace(s)
	return cases.Lower(language.Und).String(s)
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Classify decides the route for prompt. First match wins:
//  1. empty or whitespace: LOCAL / empty_prompt
//  2. real-time keyword: API_CHECK / needs_realtime_data
//  3. specialized domain: CLOUD / specialized_domain
//  4. complexity marker: CLOUD / too_complex_for_small_model
//  5. more than 150 words: CLOUD / prompt_too_long
//  6. otherwise: LOCAL / default_energy_saving
//
// Matching is by substring, so "snow" also matches "snowflake schema".
func Classify(prompt string) Classification {
	if strings.TrimSpace(prompt) == "" {
		return Classification{Route: RouteLocal, Reason: ReasonEmptyPrompt}
	}

	text := normalize(prompt)
	switch {
	case containsAny(text, realtimeKeywords):
		return Classification{Route: RouteAPICheck, Reason: ReasonRealtime}
	case containsAny(text, specializedDomains):
		return Classification{Route: RouteCloud, Reason: ReasonSpecialized}
	case containsAny(text, complexityMarkers):
		return Classification{Route: RouteCloud, Reason: ReasonTooComplex}
	case util.WordCount(prompt) > MaxLocalWordCount:
		return Classification{Route: RouteCloud, Reason: ReasonTooLong}
	default:
		return Classification{Route: RouteLocal, Reason: ReasonDefaultLocal}
	}
}

// DetectIntent returns the first intent whose keywords appear in prompt,
// scanning weather, crypto, then news.
func DetectIntent(prompt string) Intent {
	if strings.TrimSpace(prompt) == "" {
		return IntentNone
	}
	text := normalize(prompt)
	for _, group := range intentKeywords {
		if containsAny(text, group.keywords) {
			return group.intent
		}
	}
	return IntentNone
}
