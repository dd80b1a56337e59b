// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides where a prompt is answered and drives the call.
//
// Routes prompts to the cheapest backend likely to answer well:
// Local (Lemonade) by default, Cloud for complex or specialized prompts,
// and Local augmented with real-time data for time-sensitive prompts.
//
// # Key Types
//
//   - Router: the escalation state machine
//   - Classification: pre-call Route plus reason, computed once per prompt
//   - Intent: weather, crypto or news, for real-time augmentation
//   - Outcome: the final response tagged with its path and states
//
// # Escalation
//
// A local answer that admits ignorance is escalated to the cloud at most
// once. A local failure falls back to the cloud. If the escalation call
// fails the local answer is returned; if the fallback fails both causes are
// returned in a CombinedBackendError.
//
// # Usage
//
//	r, err := router.New(router.Config{Local: lemonadeClient, Cloud: cloudClient})
//	out, err := r.Route(ctx, "What is the capital of France?", router.DefaultOptions())
//	fmt.Println(out.Path, out.Text)
//
// # Energy
//
// Every inferred response is annotated with an energy estimate. Local
// responses also carry a cloud baseline and the savings. Annotation never
// fails a route.
package router
