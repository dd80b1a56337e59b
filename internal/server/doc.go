// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the router over HTTP.
//
// # Endpoints
//
//   - POST /v1/route            - Route one prompt, full outcome JSON
//   - POST /v1/chat/completions - OpenAI-compatible, non-streaming
//   - GET  /v1/profiles         - Energy profile registries
//   - GET  /health              - Backend health
//   - GET  /stats               - Server counters and ledger session totals
//   - GET  /metrics             - Prometheus collectors
//
// # Middleware
//
//   - Panic recovery
//   - zerolog request logging
//   - Per-IP token bucket rate limiting (golang.org/x/time/rate)
//   - Request body size limit
//
// # Usage
//
//	srv := server.NewServer(server.Config{
//		Port:      8787,
//		Router:    r,
//		Ledger:    ledger,
//		Local:     localClient,
//		Cloud:     cloudClient,
//		RateLimit: 5,
//		Burst:     10,
//	})
//	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
//		return err
//	}
package server
