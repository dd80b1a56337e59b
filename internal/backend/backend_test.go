// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestMessages(t *testing.T) {
	msgs := Request{Prompt: "hi"}.Messages()
	assert.Equal(t, []Message{{Role: "user", Content: "hi"}}, msgs)

	msgs = Request{Prompt: "hi", SystemPrompt: "be brief"}.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestResponseJSON(t *testing.T) {
	tokens := 12
	resp := Response{
		Prompt:     "p",
		Text:       "t",
		Model:      "m",
		Latency:    1500 * time.Millisecond,
		TokensUsed: &tokens,
		Raw:        map[string]any{"secret": "not serialized"},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.InDelta(t, 1.5, got["latency_s"], 1e-9)
	assert.EqualValues(t, 12, got["tokens_used"])
	assert.NotContains(t, got, "raw")
	assert.NotContains(t, got, "energy")
}

func TestIsAPIDirect(t *testing.T) {
	assert.True(t, (&Response{Model: ModelAPIDirect}).IsAPIDirect())
	assert.False(t, (&Response{Model: "llama"}).IsAPIDirect())
}
