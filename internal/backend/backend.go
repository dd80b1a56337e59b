// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend defines the contract shared by the inference backends.
//
// The cheap backend (package lemonade) and the expensive backend (package
// cloud) both implement Client and return a *Response. Their error types
// match ErrLocalBackend and ErrCloudBackend respectively under errors.Is, so
// the router can tell which side failed without importing either package.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jeranaias/seven/internal/energy"
)

// ModelAPIDirect marks a response that carries raw real-time provider data
// because synthesis by a model was skipped or failed.
const ModelAPIDirect = "api-direct"

// Backend sentinels, matched by the clients' error types.
var (
	ErrLocalBackend = errors.New("local backend failure")
	ErrCloudBackend = errors.New("cloud backend failure")
)

// Client is an inference backend.
type Client interface {
	// Name identifies the backend in logs and metrics ("lemonade", "cloud").
	Name() string
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// Request is one prompt submitted to a backend.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Message is one chat message in the OpenAI-compatible wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Messages returns the chat transcript for r: an optional system message
// followed by the user prompt.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.SystemPrompt})
	}
	return append(msgs, Message{Role: "user", Content: r.Prompt})
}

// Response is the normalized result of a backend call.
// Only the router's annotator writes the energy fields.
type Response struct {
	Prompt  string
	Text    string
	Model   string
	Latency time.Duration
	// TokensUsed is nil when the backend did not report usage.
	TokensUsed *int
	Raw        map[string]any

	Energy         *energy.Estimate
	BaselineEnergy *energy.Estimate
	SavingsWh      *float64
	SavingsKWh     *float64
}

// IsAPIDirect reports whether the response is unsynthesized provider data.
func (r *Response) IsAPIDirect() bool {
	return r.Model == ModelAPIDirect
}

type responseJSON struct {
	Prompt         string           `json:"prompt"`
	Text           string           `json:"text"`
	Model          string           `json:"model"`
	LatencyS       float64          `json:"latency_s"`
	TokensUsed     *int             `json:"tokens_used"`
	Energy         *energy.Estimate `json:"energy,omitempty"`
	BaselineEnergy *energy.Estimate `json:"baseline_energy,omitempty"`
	SavingsWh      *float64         `json:"savings_wh,omitempty"`
	SavingsKWh     *float64         `json:"savings_kwh,omitempty"`
}

// MarshalJSON reports latency in seconds and omits the raw payload.
func (r Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(responseJSON{
		Prompt:         r.Prompt,
		Text:           r.Text,
		Model:          r.Model,
		LatencyS:       r.Latency.Seconds(),
		TokensUsed:     r.TokensUsed,
		Energy:         r.Energy,
		BaselineEnergy: r.BaselineEnergy,
		SavingsWh:      r.SavingsWh,
		SavingsKWh:     r.SavingsKWh,
	})
}
