// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the expensive backend: an OpenAI-compatible chat
// completions client.
//
// The client makes exactly one attempt per call. Any failure, including a
// transient one, is returned to the caller as a *ClientError that matches
// backend.ErrCloudBackend.
//
// # Usage
//
//	client := cloud.NewClientWithConfig(&cloud.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	})
//	resp, err := client.Invoke(ctx, backend.Request{Prompt: "Hello"})
//
// # Security
//
// API keys are never logged; only a short SHA-256 fingerprint is. The
// client refuses to run while offline mode is enabled.
package cloud
