// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/offline"
	"github.com/jeranaias/seven/internal/router"
	"github.com/jeranaias/seven/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the default port for the HTTP server.
	DefaultPort = 8787

	// DefaultHost binds to loopback only.
	DefaultHost = "127.0.0.1"

	// MaxQueryLength is the maximum prompt or message length in bytes.
	MaxQueryLength = 100000

	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 100

	// MaxRequestBodySize caps request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// MaxTokensLimit is the maximum value for max_tokens.
	MaxTokensLimit = 128000

	MinTemperature = 0.0
	MaxTemperature = 2.0

	// Version is the server version.
	Version = "0.3.0"
)

// validRoles defines the set of acceptable message roles.
var validRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
	"tool":      true,
}

// validateMessages rejects unknown roles.
func validateMessages(messages []ChatMessage) error {
	for i, msg := range messages {
		if !validRoles[msg.Role] {
			return fmt.Errorf("invalid role '%s' at message %d: must be one of user, assistant, system, tool", msg.Role, i)
		}
	}
	return nil
}

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Router answers prompts. *router.Router implements it.
type Router interface {
	Route(ctx context.Context, prompt string, opts router.Options) (*router.Outcome, error)
}

// Ledger records answered prompts. *telemetry.Ledger implements it.
type Ledger interface {
	Record(ctx context.Context, e telemetry.Entry) error
	CurrentSession() telemetry.Session
}

// LocalChecker probes the local backend. *lemonade.Client implements it.
type LocalChecker interface {
	CheckRunning(ctx context.Context) error
}

// CloudStatus reports whether the cloud backend has credentials.
// *cloud.Client implements it.
type CloudStatus interface {
	IsConfigured() bool
}

// ============================================================================
// SERVER STATS
// ============================================================================

// StatsSnapshot is a point-in-time copy of the server counters.
type StatsSnapshot struct {
	TotalRequests    int64     `json:"total_requests"`
	LocalRequests    int64     `json:"local_requests"`
	CloudRequests    int64     `json:"cloud_requests"`
	Escalations      int64     `json:"escalations"`
	Fallbacks        int64     `json:"fallbacks"`
	EscalationErrors int64     `json:"escalation_errors"`
	Failures         int64     `json:"failures"`
	TotalTokens      int64     `json:"total_tokens"`
	EnergyUsedWh     float64   `json:"energy_used_wh"`
	EnergySavedWh    float64   `json:"energy_saved_wh"`
	StartTime        time.Time `json:"start_time"`
}

// Uptime returns the time elapsed since StartTime.
func (s StatsSnapshot) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// ServerStats tracks usage since the server started.
type ServerStats struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

// NewServerStats creates a new ServerStats instance.
func NewServerStats() *ServerStats {
	return &ServerStats{snap: StatsSnapshot{StartTime: time.Now()}}
}

// RecordOutcome folds a successful routing outcome into the stats.
func (s *ServerStats) RecordOutcome(out *router.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.snap
	c.TotalRequests++
	if out.Path.IsLocal() {
		c.LocalRequests++
	} else {
		c.CloudRequests++
	}
	switch out.Path {
	case router.PathCloudEscalated:
		c.Escalations++
	case router.PathCloudFallback:
		c.Fallbacks++
	}
	if out.EscalationFailed {
		c.EscalationErrors++
	}
	if out.TokensUsed != nil {
		c.TotalTokens += int64(*out.TokensUsed)
	}
	if out.Energy != nil {
		c.EnergyUsedWh += out.Energy.WattHours
	}
	if out.SavingsWh != nil {
		c.EnergySavedWh += *out.SavingsWh
	}
}

// RecordFailure counts a request that returned an error.
func (s *ServerStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.TotalRequests++
	s.snap.Failures++
}

// GetStats returns a copy of the current counters.
func (s *ServerStats) GetStats() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Uptime returns the server uptime duration. StartTime never changes after
// construction, so no lock is taken.
func (s *ServerStats) Uptime() time.Duration {
	return s.snap.Uptime()
}

// ============================================================================
// SERVER
// ============================================================================

// Config wires a Server. Router is required; the rest are optional.
type Config struct {
	Host string
	Port int

	Router Router
	Ledger Ledger
	Local  LocalChecker
	Cloud  CloudStatus

	// Defaults are the routing options each request starts from
	// (nil means router.DefaultOptions).
	Defaults *router.Options

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64
	Burst     int
}

// Server is the HTTP API in front of the router.
type Server struct {
	host   string
	port   int
	mux    *http.ServeMux
	server *http.Server

	router   Router
	ledger   Ledger
	local    LocalChecker
	cloud    CloudStatus
	defaults router.Options

	limiter *RateLimiter
	stats   *ServerStats
	log     zerolog.Logger

	mu sync.RWMutex
}

// NewServer creates a Server from cfg. Port 0 means DefaultPort.
func NewServer(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	defaults := router.DefaultOptions()
	if cfg.Defaults != nil {
		defaults = *cfg.Defaults
	}

	s := &Server{
		host:     cfg.Host,
		port:     cfg.Port,
		mux:      http.NewServeMux(),
		router:   cfg.Router,
		ledger:   cfg.Ledger,
		local:    cfg.Local,
		cloud:    cfg.Cloud,
		defaults: defaults,
		limiter:  NewRateLimiter(cfg.RateLimit, cfg.Burst),
		stats:    NewServerStats(),
		log:      logging.Component("server"),
	}
	s.setupRoutes()
	return s
}

// SetRouter swaps the router, e.g. after a config reload.
func (s *Server) SetRouter(r Router) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.router = r
}

// SetDefaults swaps the per-request default options.
func (s *Server) SetDefaults(opts router.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = opts
}

// Port returns the server port.
func (s *Server) Port() int {
	return s.port
}

// Addr returns host:port.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Stats returns the live counters.
func (s *Server) Stats() *ServerStats {
	return s.stats
}

func (s *Server) current() (Router, router.Options) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router, s.defaults
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("POST /v1/route", s.handleRoute)
	s.mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	s.mux.HandleFunc("GET /v1/profiles", s.handleProfiles)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.log),
		RateLimitMiddleware(s.limiter, s.log),
		BodyLimitMiddleware(MaxRequestBodySize),
	)(s.mux)
}

// ============================================================================
// ROUTE HANDLER
// ============================================================================

// RouteRequest is the body of POST /v1/route. Nil pointers keep the server
// defaults.
type RouteRequest struct {
	Prompt         string   `json:"prompt"`
	ForceCloud     bool     `json:"force_cloud"`
	EnableRealtime *bool    `json:"enable_realtime,omitempty"`
	AutoEscalate   *bool    `json:"auto_escalate,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty"`
	LocalProfile   string   `json:"local_profile,omitempty"`
	CloudProfile   string   `json:"cloud_profile,omitempty"`
}

func (req RouteRequest) options(defaults router.Options) router.Options {
	opts := defaults
	opts.ForceCloud = req.ForceCloud
	if req.EnableRealtime != nil {
		opts.EnableRealtime = *req.EnableRealtime
	}
	if req.AutoEscalate != nil {
		opts.AutoEscalate = *req.AutoEscalate
	}
	if req.SystemPrompt != "" {
		opts.SystemPrompt = req.SystemPrompt
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		opts.MaxTokens = req.MaxTokens
	}
	if req.LocalProfile != "" {
		opts.LocalProfile = req.LocalProfile
	}
	if req.CloudProfile != "" {
		opts.CloudProfile = req.CloudProfile
	}
	return opts
}

func (req RouteRequest) validate() error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.New("prompt must not be empty")
	}
	if len(req.Prompt) > MaxQueryLength {
		return fmt.Errorf("prompt exceeds maximum length of %d", MaxQueryLength)
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxTokensLimit {
		return fmt.Errorf("max_tokens must be between 1 and %d", MaxTokensLimit)
	}
	if req.Temperature != nil && (*req.Temperature < MinTemperature || *req.Temperature > MaxTemperature) {
		return fmt.Errorf("temperature must be between %.1f and %.1f", MinTemperature, MaxTemperature)
	}
	if req.LocalProfile != "" {
		if _, ok := energy.LookupLocal(req.LocalProfile); !ok {
			return fmt.Errorf("unknown local profile '%s'", req.LocalProfile)
		}
	}
	if req.CloudProfile != "" {
		if _, ok := energy.LookupCloud(req.CloudProfile); !ok {
			return fmt.Errorf("unknown cloud profile '%s'", req.CloudProfile)
		}
	}
	return nil
}

// handleRoute handles POST /v1/route.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	rt, defaults := s.current()
	out, ok := s.route(w, r, rt, req.Prompt, req.options(defaults))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// route runs the router and writes the error response on failure.
func (s *Server) route(w http.ResponseWriter, r *http.Request, rt Router, prompt string, opts router.Options) (*router.Outcome, bool) {
	if rt == nil {
		writeError(w, http.StatusServiceUnavailable, "server_error", "Router is not configured")
		return nil, false
	}

	out, err := rt.Route(r.Context(), prompt, opts)
	if err != nil {
		s.stats.RecordFailure()
		if errors.Is(err, router.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
			return nil, false
		}
		// Full cause stays in the log; clients get a generic message.
		s.log.Error().Err(err).Msg("routing failed")
		writeError(w, http.StatusBadGateway, "backend_error", "All backends failed to answer. Please try again.")
		return nil, false
	}

	s.stats.RecordOutcome(out)
	if s.ledger != nil {
		if err := s.ledger.Record(r.Context(), telemetry.EntryFromOutcome(out)); err != nil {
			s.log.Warn().Err(err).Str("request_id", out.RequestID).Msg("ledger write failed")
		}
	}

	w.Header().Set("X-Request-ID", out.RequestID)
	w.Header().Set("X-Seven-Path", string(out.Path))
	return out, true
}

// ============================================================================
// OPENAI-COMPATIBLE TYPES
// ============================================================================

// ChatMessage represents a message in the chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the OpenAI-compatible chat completion request.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatChoice represents a single choice in the completion response.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the OpenAI-compatible chat completion response.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`

	// Seven carries routing metadata the OpenAI schema has no room for.
	Seven *CompletionMeta `json:"seven,omitempty"`
}

// CompletionMeta is the routing summary attached to a chat completion.
type CompletionMeta struct {
	Path      router.Path `json:"path"`
	RequestID string      `json:"request_id"`
	SavingsWh *float64    `json:"savings_wh,omitempty"`
}

// lastUserAndSystem picks the prompt and system prompt out of messages.
func lastUserAndSystem(messages []ChatMessage) (prompt, system string) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			prompt = messages[i].Content
			break
		}
	}
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			break
		}
	}
	return prompt, system
}

// ============================================================================
// CHAT COMPLETIONS HANDLER
// ============================================================================

// handleChatCompletions handles POST /v1/chat/completions. Only the last
// user message is routed.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Stream {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Streaming is not supported")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Request must contain at least one message")
		return
	}
	if len(req.Messages) > MaxMessageCount {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("Too many messages: maximum is %d", MaxMessageCount))
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.log.Debug().Err(err).Msg("message validation failed")
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Invalid message format. Messages must have valid roles (user, assistant, system, tool)")
		return
	}
	for i, msg := range req.Messages {
		if len(msg.Content) > MaxQueryLength {
			writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("Message %d exceeds maximum length of %d", i, MaxQueryLength))
			return
		}
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxTokensLimit {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("max_tokens must be between 1 and %d", MaxTokensLimit))
		return
	}
	if req.Temperature != nil && (*req.Temperature < MinTemperature || *req.Temperature > MaxTemperature) {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("temperature must be between %.1f and %.1f", MinTemperature, MaxTemperature))
		return
	}

	prompt, system := lastUserAndSystem(req.Messages)
	if strings.TrimSpace(prompt) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Request must contain a non-empty user message")
		return
	}

	rt, opts := s.current()
	if system != "" {
		opts.SystemPrompt = system
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		opts.MaxTokens = req.MaxTokens
	}
	// "cloud" pins the request to the expensive backend.
	opts.ForceCloud = req.Model == "cloud"

	out, ok := s.route(w, r, rt, prompt, opts)
	if !ok {
		return
	}

	var usage Usage
	if out.TokensUsed != nil {
		usage.CompletionTokens = *out.TokensUsed
		usage.TotalTokens = *out.TokensUsed
	}
	writeJSON(w, http.StatusOK, ChatCompletionResponse{
		ID:      "chatcmpl-" + strings.ReplaceAll(out.RequestID, "-", ""),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   out.Model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: out.Text},
			FinishReason: "stop",
		}},
		Usage: usage,
		Seven: &CompletionMeta{Path: out.Path, RequestID: out.RequestID, SavingsWh: out.SavingsWh},
	})
}

// ============================================================================
// PROFILES HANDLER
// ============================================================================

// ProfilesResponse lists the energy profile registries.
type ProfilesResponse struct {
	Local        []energy.Profile `json:"local"`
	Cloud        []energy.Profile `json:"cloud"`
	DefaultLocal string           `json:"default_local"`
	DefaultCloud string           `json:"default_cloud"`
}

// handleProfiles handles GET /v1/profiles.
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	_, defaults := s.current()
	writeJSON(w, http.StatusOK, ProfilesResponse{
		Local:        energy.ListLocal(),
		Cloud:        energy.ListCloud(),
		DefaultLocal: firstNonEmpty(defaults.LocalProfile, energy.DefaultLocalProfile),
		DefaultCloud: firstNonEmpty(defaults.CloudProfile, energy.DefaultCloudProfile),
	})
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	LocalStatus string `json:"local_status"`
	CloudStatus string `json:"cloud_status"`
	Offline     bool   `json:"offline"`
}

// handleHealth handles GET /health. A down local backend makes the status
// "degraded" but still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:  "ok",
		Version: Version,
		Offline: offline.IsOfflineMode(),
	}

	if s.local != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.local.CheckRunning(ctx); err == nil {
			health.LocalStatus = "ok"
		} else {
			health.LocalStatus = "unavailable"
			health.Status = "degraded"
		}
	} else {
		health.LocalStatus = "not_configured"
	}

	switch {
	case health.Offline:
		health.CloudStatus = "blocked"
	case s.cloud != nil && s.cloud.IsConfigured():
		health.CloudStatus = "configured"
	default:
		health.CloudStatus = "not_configured"
	}

	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// STATS HANDLER
// ============================================================================

// StatsResponse represents the usage statistics response.
type StatsResponse struct {
	StatsSnapshot
	UptimeSeconds int64              `json:"uptime_seconds"`
	LocalShare    float64            `json:"local_share"`
	Session       *telemetry.Session `json:"session,omitempty"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.GetStats()

	resp := StatsResponse{
		StatsSnapshot: stats,
		UptimeSeconds: int64(stats.Uptime().Seconds()),
	}
	if answered := stats.LocalRequests + stats.CloudRequests; answered > 0 {
		resp.LocalShare = float64(stats.LocalRequests) / float64(answered)
	}
	if s.ledger != nil {
		session := s.ledger.CurrentSession()
		resp.Session = &session
	}
	writeJSON(w, http.StatusOK, &resp)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens and serves until Shutdown. It returns http.ErrServerClosed
// after a clean shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.log.Info().Str("addr", srv.Addr).Str("version", Version).Msg("server starting")
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	stats := s.stats.GetStats()
	s.log.Info().
		Int64("requests", stats.TotalRequests).
		Float64("saved_wh", stats.EnergySavedWh).
		Msg("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// decode reads a JSON body into v, writing a 4xx response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", tooLarge.Limit))
			return false
		}
		s.log.Debug().Err(err).Msg("invalid request body")
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Invalid request format")
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an OpenAI-style JSON error.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    status,
		},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
