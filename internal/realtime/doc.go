// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package realtime fetches live data used to ground answers to time-sensitive
// prompts: current weather (OpenWeatherMap), crypto prices (CoinDesk) and top
// headlines (NewsAPI).
//
// Every provider returns a human-readable summary string. Expected failures
// such as a missing credential, a non-200 reply, a throttled call or offline
// mode are reported inside that string. Only transport and decoding failures
// come back as errors.
package realtime
