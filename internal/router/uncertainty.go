// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "strings"

// uncertaintyPhrases are admissions of ignorance in a local answer.
var uncertaintyPhrases = []string{
	"i don't know",
	"i don't",
	"i'm not sure",
	"not sure",
	"i cannot",
	"i can't",
	"i cannot answer",
	"i'm unable to",
	"unable to help",
	"cannot provide",
	"can't provide",
	"i don't have information",
	"don't have information",
	"i don't have access",
	"don't have access",
	"beyond my knowledge",
	"i lack",
	"insufficient information",
	"i apologize",
	"i'm sorry",
	"sorry, i",
	"unfortunately, i",
	"as an ai",
	"as a language model",
	"i'm just an ai",
}

// ShowsUncertainty reports whether text is empty or admits the model does
// not know the answer. Short answers such as "Paris" are not uncertain.
func ShowsUncertainty(text string) bool {
	t := strings.TrimSpace(normalize(text))
	if t == "" {
		return true
	}
	return containsAny(t, uncertaintyPhrases)
}
