// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics declares the Prometheus collectors for routing, backends,
// real-time providers and energy accounting. Collectors register with the
// default registry and are served by `seven serve` at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Routes counts routed prompts by classifier route and final path.
	Routes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_routes_total",
			Help: "Prompts routed, by classification route and final path",
		},
		[]string{"route", "path"},
	)

	// Escalations counts uncertainty escalations by outcome (ok, failed).
	Escalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_escalations_total",
			Help: "Uncertain local answers escalated to the cloud backend",
		},
		[]string{"outcome"},
	)

	// Fallbacks counts local failures handed to the cloud by outcome.
	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_fallbacks_total",
			Help: "Local backend failures that fell back to the cloud backend",
		},
		[]string{"outcome"},
	)

	// BackendRequests counts backend invocations by backend and status.
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_backend_requests_total",
			Help: "Backend invocations, by backend and status",
		},
		[]string{"backend", "status"},
	)

	// BackendLatency observes successful backend call latency.
	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "seven_backend_latency_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"backend"},
	)

	// LocalRetries counts retried attempts against the cheap backend.
	LocalRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seven_local_retries_total",
			Help: "Retried attempts against the local backend",
		},
	)

	// ProviderCalls counts real-time provider calls by provider and outcome.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_provider_calls_total",
			Help: "Real-time data provider calls, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// EnergyUsedWh accumulates estimated energy of answered prompts.
	EnergyUsedWh = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_energy_used_wh_total",
			Help: "Estimated energy spent answering prompts, in watt-hours",
		},
		[]string{"backend"},
	)

	// EnergySavedWh accumulates savings against the cloud baseline.
	EnergySavedWh = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seven_energy_saved_wh_total",
			Help: "Estimated energy saved versus the cloud baseline, in watt-hours",
		},
	)

	// HTTPRequests counts API server requests by pattern and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seven_http_requests_total",
			Help: "HTTP API requests, by route pattern and status code",
		},
		[]string{"pattern", "code"},
	)

	// RateLimited counts requests rejected by the per-IP limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seven_http_rate_limited_total",
			Help: "HTTP API requests rejected by the per-client rate limiter",
		},
	)
)
