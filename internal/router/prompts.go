// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import "strings"

// LocalSystemPrompt is the local backend's identity when the caller gives none.
const LocalSystemPrompt = "You are SEVEN Local, an energy-efficient assistant running on local hardware. " +
	"Answer accurately and concisely. If you do not know the answer, say \"I don't know\" instead of guessing."

// UnavailableNote is appended when live data was wanted but none was obtained.
const UnavailableNote = "(Note: Real-time data APIs were unavailable, respond with general knowledge.)"

const briefInstruction = "Answer briefly, in one or two sentences. Do not invent facts, figures or dates."

const groundedInstruction = "Answer in a single short sentence using only the data above. " +
	"If the data does not answer the question, say so."

// BuildLocalPrompt wraps query for a small local model. When apiData is
// non-empty the answer is grounded on it.
func BuildLocalPrompt(query, apiData string) string {
	var b strings.Builder
	if apiData = strings.TrimSpace(apiData); apiData != "" {
		b.WriteString("Real-time data:\n")
		b.WriteString(apiData)
		b.WriteString("\n\nQuestion: ")
		b.WriteString(query)
		b.WriteString("\n\n")
		b.WriteString(groundedInstruction)
		return b.String()
	}
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(briefInstruction)
	return b.String()
}

// withUnavailableNote appends UnavailableNote to prompt.
func withUnavailableNote(prompt string) string {
	return prompt + "\n\n" + UnavailableNote
}
