// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lemonade provides the HTTP client for a local Lemonade Server,
// the cheap backend of the router.
//
// Lemonade exposes an OpenAI-compatible chat completions endpoint that runs
// small models on NPU, GPU or hybrid recipes. Calls are retried on transport
// failures and HTTP 5xx with exponential backoff; 4xx responses and
// malformed payloads fail immediately.
//
// # Key Types
//
//   - Client: implements backend.Client against Lemonade
//   - ClientConfig: base URL, model, recipe/device and retry policy
//   - ClientError: typed error matching backend.ErrLocalBackend
//
// # Usage
//
//	client := lemonade.NewClientWithConfig(&lemonade.ClientConfig{
//	    BaseURL:    "http://localhost:8000/api/v1",
//	    MaxRetries: 2,
//	    Backoff:    500 * time.Millisecond,
//	})
//	resp, err := client.Invoke(ctx, backend.Request{Prompt: "What is the capital of France?"})
package lemonade
