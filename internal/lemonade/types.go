// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lemonade

import "github.com/jeranaias/seven/internal/backend"

// ChatRequest is the chat completions payload.
type ChatRequest struct {
	Model       string            `json:"model"`
	Messages    []backend.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream"`
	Recipe      string            `json:"recipe,omitempty"`
	Device      string            `json:"device,omitempty"`
}

// apiErrorResponse is the error body Lemonade returns with 4xx/5xx.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
