// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/seven/internal/backend"
)

// ============================================================================
// ROUTE
// ============================================================================

// Route is the coarse pre-call destination.
type Route int

const (
	// RouteLocal sends the prompt to the local backend.
	RouteLocal Route = iota
	// RouteCloud sends the prompt straight to the cloud backend.
	RouteCloud
	// RouteAPICheck sends the prompt to the local backend after fetching live data.
	RouteAPICheck
)

// String returns the wire name of the route.
func (r Route) String() string {
	switch r {
	case RouteLocal:
		return "LOCAL"
	case RouteCloud:
		return "CLOUD"
	case RouteAPICheck:
		return "API_CHECK"
	default:
		return fmt.Sprintf("Route(%d)", r)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Route) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Classification reasons.
const (
	ReasonEmptyPrompt  = "empty_prompt"
	ReasonRealtime     = "needs_realtime_data"
	ReasonSpecialized  = "specialized_domain"
	ReasonTooComplex   = "too_complex_for_small_model"
	ReasonTooLong      = "prompt_too_long"
	ReasonDefaultLocal = "default_energy_saving"
)

// Classification is the pre-call routing decision for one prompt.
type Classification struct {
	Route  Route  `json:"route"`
	Reason string `json:"reason"`
}

// String returns "ROUTE (reason)".
func (c Classification) String() string {
	return fmt.Sprintf("%s (%s)", c.Route, c.Reason)
}

// ============================================================================
// INTENT
// ============================================================================

// Intent names the kind of live data a prompt asks for.
type Intent string

const (
	IntentNone    Intent = ""
	IntentWeather Intent = "weather"
	IntentCrypto  Intent = "crypto"
	IntentNews    Intent = "news"
)

// Label is the display name used in grounding context and error strings.
func (i Intent) Label() string {
	switch i {
	case IntentWeather:
		return "Weather"
	case IntentCrypto:
		return "Crypto"
	case IntentNews:
		return "News"
	default:
		return "None"
	}
}

// ============================================================================
// PATH AND STATE
// ============================================================================

// Path records which backend produced the final answer and why.
type Path string

const (
	PathLocalDirect    Path = "local-direct"
	PathLocalAugmented Path = "local-augmented"
	PathCloudDirect    Path = "cloud-direct"
	PathCloudEscalated Path = "cloud-escalated"
	PathCloudFallback  Path = "cloud-fallback-after-local-error"
)

// IsLocal reports whether the answer came from the local backend (or
// unsynthesized provider data).
func (p Path) IsLocal() bool {
	return p == PathLocalDirect || p == PathLocalAugmented
}

// State is a step of the routing state machine.
type State int

const (
	StateStart State = iota
	StateClassify
	StateDirectCloud
	StateDirectLocal
	StateAugmentedLocal
	StateCheckUncertainty
	StateEscalatedCloud
	StateFallbackCloud
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateClassify:
		return "CLASSIFY"
	case StateDirectCloud:
		return "DIRECT_CLOUD"
	case StateDirectLocal:
		return "DIRECT_LOCAL"
	case StateAugmentedLocal:
		return "AUGMENTED_LOCAL"
	case StateCheckUncertainty:
		return "CHECK_UNCERTAINTY"
	case StateEscalatedCloud:
		return "ESCALATED_CLOUD"
	case StateFallbackCloud:
		return "FALLBACK_CLOUD"
	case StateDone:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ============================================================================
// OPTIONS
// ============================================================================

// Default generation settings.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 512
)

// Options controls one Route call. Start from DefaultOptions.
type Options struct {
	// ForceCloud skips classification and calls the cloud backend.
	ForceCloud bool
	// SystemPrompt is sent to whichever backend answers. When empty the
	// local backend gets LocalSystemPrompt.
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	// EnableRealtime allows live-data augmentation for API_CHECK prompts.
	EnableRealtime bool
	// AutoEscalate allows one cloud call after an uncertain local answer.
	AutoEscalate bool
	// OnStatus observes progress. It runs on its own goroutine and may miss
	// notifications if it falls behind.
	OnStatus func(Status)
	// StatusFlush is how long Route waits, before returning, for OnStatus to
	// finish the queued notifications. Zero returns immediately.
	StatusFlush time.Duration
	// LocalProfile and CloudProfile override the router's energy profiles.
	LocalProfile string
	CloudProfile string
}

// DefaultOptions returns the standard routing options.
func DefaultOptions() Options {
	return Options{
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		EnableRealtime: true,
		AutoEscalate:   true,
	}
}

// ============================================================================
// OUTCOME
// ============================================================================

// Outcome is the final response of a Route call.
type Outcome struct {
	backend.Response

	Path Path
	// Classification is nil when the call was forced to the cloud.
	Classification *Classification
	Intent         Intent
	RequestID      string
	Forced         bool
	// EscalationFailed is set when an uncertain local answer was returned
	// because the escalation call failed.
	EscalationFailed bool
	States           []State
}

// MarshalJSON flattens the response fields next to the routing metadata.
func (o Outcome) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(o.Response)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}

	extra := map[string]any{
		"path":              o.Path,
		"classification":    o.Classification,
		"intent":            o.Intent,
		"request_id":        o.RequestID,
		"forced":            o.Forced,
		"escalation_failed": o.EscalationFailed,
		"states":            o.States,
	}
	for k, v := range extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}
