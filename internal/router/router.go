// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/metrics"
	"github.com/jeranaias/seven/internal/realtime"
	"github.com/jeranaias/seven/internal/util"
)

// ============================================================================
// TRANSITIONS
// ============================================================================

// transitions is the complete set of legal edges. ESCALATED_CLOUD is only
// reachable from CHECK_UNCERTAINTY and only leads to DONE, which bounds
// escalation to one cloud call per prompt.
var transitions = map[State][]State{
	StateStart:            {StateClassify, StateDirectCloud},
	StateClassify:         {StateDirectCloud, StateDirectLocal, StateAugmentedLocal},
	StateDirectCloud:      {StateDone},
	StateDirectLocal:      {StateCheckUncertainty, StateFallbackCloud},
	StateAugmentedLocal:   {StateCheckUncertainty, StateFallbackCloud},
	StateCheckUncertainty: {StateEscalatedCloud, StateDone},
	StateEscalatedCloud:   {StateDone},
	StateFallbackCloud:    {StateDone},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine tracks the current state and the states visited.
type machine struct {
	state State
	trail []State
}

func newMachine() *machine {
	return &machine{state: StateStart, trail: []State{StateStart}}
}

func (m *machine) advance(next State) error {
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, next)
	}
	m.state = next
	m.trail = append(m.trail, next)
	return nil
}

// ============================================================================
// ROUTER
// ============================================================================

// Config wires a Router.
type Config struct {
	// Local and Cloud are required.
	Local backend.Client
	Cloud backend.Client

	// Providers serve real-time intents. Intents without a provider are
	// answered from general knowledge.
	Providers map[Intent]realtime.Provider

	// DisableSynthesis returns provider data as-is instead of asking the
	// local backend to phrase it.
	DisableSynthesis bool

	// Catalog resolves energy profiles (default: energy.Registry).
	Catalog      energy.Catalog
	LocalProfile string
	CloudProfile string
	// DefaultTokens is used when a backend reports no usage (default 500).
	DefaultTokens int
}

// Router routes prompts. It holds only read-only state after New, so
// concurrent Route calls need no locking.
type Router struct {
	local            backend.Client
	cloud            backend.Client
	providers        map[Intent]realtime.Provider
	disableSynthesis bool
	localProfile     string
	cloudProfile     string
	annotate         annotator
	log              zerolog.Logger
}

// New creates a Router from cfg.
func New(cfg Config) (*Router, error) {
	if cfg.Local == nil || cfg.Cloud == nil {
		return nil, errors.New("router: local and cloud backends are required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = energy.Registry{}
	}
	if cfg.LocalProfile == "" {
		cfg.LocalProfile = energy.DefaultLocalProfile
	}
	if cfg.CloudProfile == "" {
		cfg.CloudProfile = energy.DefaultCloudProfile
	}
	if cfg.DefaultTokens <= 0 {
		cfg.DefaultTokens = energy.DefaultTokens
	}

	providers := make(map[Intent]realtime.Provider, len(cfg.Providers))
	for k, v := range cfg.Providers {
		providers[k] = v
	}

	log := logging.Component("router")
	return &Router{
		local:            cfg.Local,
		cloud:            cfg.Cloud,
		providers:        providers,
		disableSynthesis: cfg.DisableSynthesis,
		localProfile:     cfg.LocalProfile,
		cloudProfile:     cfg.CloudProfile,
		annotate:         annotator{catalog: cfg.Catalog, defaultTokens: cfg.DefaultTokens, log: log},
		log:              log,
	}, nil
}

// Route answers prompt. The only errors returned are ErrInvalidInput, the
// cloud error of a cloud-only route, and CombinedBackendError.
func (r *Router) Route(ctx context.Context, prompt string, opts Options) (*Outcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrInvalidInput
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	localProfile := firstNonEmpty(opts.LocalProfile, r.localProfile)
	cloudProfile := firstNonEmpty(opts.CloudProfile, r.cloudProfile)

	out := &Outcome{RequestID: uuid.NewString(), Forced: opts.ForceCloud}
	log := r.log.With().Str("request_id", out.RequestID).Logger()
	log.Debug().Str("prompt", util.TruncateRunes(prompt, 80)).Msg("routing prompt")

	status := newNotifier(opts.OnStatus, log)
	defer status.close(opts.StatusFlush)

	cloudReq := backend.Request{
		Prompt:       prompt,
		SystemPrompt: opts.SystemPrompt,
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
	}
	localReq := cloudReq
	localReq.SystemPrompt = firstNonEmpty(opts.SystemPrompt, LocalSystemPrompt)

	m := newMachine()
	var (
		localResp *backend.Response
		localErr  error
		final     *backend.Response
	)

	for m.state != StateDone {
		var next State
		switch m.state {
		case StateStart:
			next = StateClassify
			if opts.ForceCloud {
				log.Info().Msg("routing to cloud (forced)")
				next = StateDirectCloud
			}

		case StateClassify:
			c := Classify(prompt)
			out.Classification = &c
			log.Info().Str("route", c.Route.String()).Str("reason", c.Reason).Msg("pre-routing classification")
			switch {
			case c.Route == RouteCloud:
				next = StateDirectCloud
			case c.Route == RouteAPICheck && opts.EnableRealtime:
				next = StateAugmentedLocal
			default:
				if c.Route == RouteAPICheck {
					log.Info().Msg("real-time data needed but augmentation disabled")
				}
				next = StateDirectLocal
			}

		case StateDirectCloud:
			status.emit(StatusCloudProcessing)
			resp, err := r.callCloud(ctx, cloudReq, cloudProfile)
			if err != nil {
				return nil, err
			}
			final = resp
			out.Path = PathCloudDirect
			next = StateDone

		case StateDirectLocal, StateAugmentedLocal:
			status.emit(StatusLocalStarting)
			if m.state == StateAugmentedLocal {
				status.emit(StatusAPIFetching)
				localResp, out.Intent, localErr = r.augment(ctx, prompt, localReq, log)
				out.Path = PathLocalAugmented
			} else {
				req := localReq
				req.Prompt = BuildLocalPrompt(prompt, "")
				localResp, localErr = r.local.Invoke(ctx, req)
				out.Path = PathLocalDirect
			}
			next = StateCheckUncertainty
			if localErr != nil {
				log.Warn().Err(localErr).Msg("local backend failed, falling back to cloud")
				next = StateFallbackCloud
			}

		case StateCheckUncertainty:
			// The caller sees its own prompt, not the wrapped one.
			localResp.Prompt = prompt
			r.annotate.local(localResp, localProfile, cloudProfile)
			final = localResp
			next = StateDone
			if opts.AutoEscalate && ShowsUncertainty(localResp.Text) {
				log.Info().Msg("local answer shows uncertainty, escalating to cloud")
				next = StateEscalatedCloud
			}

		case StateEscalatedCloud:
			status.emit(StatusLocalUncertainEscalating)
			status.emit(StatusCloudProcessing)
			resp, err := r.callCloud(ctx, cloudReq, cloudProfile)
			if err != nil {
				log.Warn().Err(err).Msg("cloud escalation failed, returning local answer")
				metrics.Escalations.WithLabelValues("failed").Inc()
				out.EscalationFailed = true
			} else {
				metrics.Escalations.WithLabelValues("ok").Inc()
				final = resp
				out.Path = PathCloudEscalated
			}
			next = StateDone

		case StateFallbackCloud:
			status.emit(StatusLocalFailedFallingBack)
			status.emit(StatusCloudProcessing)
			resp, err := r.callCloud(ctx, cloudReq, cloudProfile)
			if err != nil {
				metrics.Fallbacks.WithLabelValues("failed").Inc()
				log.Error().Err(err).Msg("cloud fallback failed")
				return nil, &CombinedBackendError{Local: localErr, Cloud: err}
			}
			metrics.Fallbacks.WithLabelValues("ok").Inc()
			final = resp
			out.Path = PathCloudFallback
			next = StateDone
		}

		if err := m.advance(next); err != nil {
			return nil, err
		}
	}

	out.Response = *final
	out.States = m.trail

	route := "FORCED"
	if out.Classification != nil {
		route = out.Classification.Route.String()
	}
	metrics.Routes.WithLabelValues(route, string(out.Path)).Inc()
	log.Info().Str("path", string(out.Path)).Str("model", out.Model).Dur("latency", out.Latency).Msg("routed")
	return out, nil
}

// callCloud invokes the cloud backend and annotates a successful response.
func (r *Router) callCloud(ctx context.Context, req backend.Request, cloudProfile string) (*backend.Response, error) {
	resp, err := r.cloud.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Prompt = req.Prompt
	r.annotate.cloud(resp, cloudProfile)
	return resp, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
