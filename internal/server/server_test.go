// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/router"
	"github.com/jeranaias/seven/internal/telemetry"
)

// =============================================================================
// FAKES
// =============================================================================

type routeCall struct {
	prompt string
	opts   router.Options
}

type fakeRouter struct {
	mu    sync.Mutex
	calls []routeCall
	out   *router.Outcome
	err   error
}

func (f *fakeRouter) Route(_ context.Context, prompt string, opts router.Options) (*router.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, routeCall{prompt, opts})
	if f.err != nil {
		return nil, f.err
	}
	out := *f.out
	out.Prompt = prompt
	return &out, nil
}

func (f *fakeRouter) last(t *testing.T) routeCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []telemetry.Entry
	err     error
}

func (f *fakeLedger) Record(_ context.Context, e telemetry.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return f.err
}

func (f *fakeLedger) CurrentSession() telemetry.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return telemetry.Session{ID: "session-1", Queries: len(f.entries), ByPath: map[string]int{}}
}

type fakeLocal struct{ err error }

func (f fakeLocal) CheckRunning(context.Context) error { return f.err }

type fakeCloud bool

func (f fakeCloud) IsConfigured() bool { return bool(f) }

func localOutcome() *router.Outcome {
	tokens := 40
	saved := 0.02
	return &router.Outcome{
		Response: backend.Response{
			Text:       "Paris.",
			Model:      "Llama-3.2-1B-Instruct-Hybrid",
			Latency:    250 * time.Millisecond,
			TokensUsed: &tokens,
			Energy:     &energy.Estimate{WattHours: 0.01},
			SavingsWh:  &saved,
		},
		Path:           router.PathLocalDirect,
		Classification: &router.Classification{Route: router.RouteLocal, Reason: router.ReasonDefaultLocal},
		RequestID:      "0b6f1c8e-7d0a-4f5e-9a57-3c1b2f9d8e11",
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewServer(cfg).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func errorMessage(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error body, got %v", body)
	return e["message"].(string)
}

// =============================================================================
// SERVER STATS TESTS
// =============================================================================

func TestServerStats_RecordOutcome(t *testing.T) {
	stats := NewServerStats()

	stats.RecordOutcome(localOutcome())

	escalated := localOutcome()
	escalated.Path = router.PathCloudEscalated
	escalated.TokensUsed = nil
	escalated.SavingsWh = nil
	stats.RecordOutcome(escalated)

	kept := localOutcome()
	kept.EscalationFailed = true
	stats.RecordOutcome(kept)

	fallback := localOutcome()
	fallback.Path = router.PathCloudFallback
	stats.RecordOutcome(fallback)

	stats.RecordFailure()

	got := stats.GetStats()
	assert.EqualValues(t, 5, got.TotalRequests)
	assert.EqualValues(t, 2, got.LocalRequests)
	assert.EqualValues(t, 2, got.CloudRequests)
	assert.EqualValues(t, 1, got.Escalations)
	assert.EqualValues(t, 1, got.Fallbacks)
	assert.EqualValues(t, 1, got.EscalationErrors)
	assert.EqualValues(t, 1, got.Failures)
	assert.EqualValues(t, 120, got.TotalTokens)
	assert.InDelta(t, 0.04, got.EnergyUsedWh, 1e-9)
	assert.InDelta(t, 0.06, got.EnergySavedWh, 1e-9)
}

func TestServerStats_SnapshotIsDetached(t *testing.T) {
	stats := NewServerStats()
	stats.RecordOutcome(localOutcome())

	snap := stats.GetStats()
	stats.RecordFailure()

	assert.EqualValues(t, 1, snap.TotalRequests)
	assert.EqualValues(t, 0, snap.Failures)
	assert.EqualValues(t, 2, stats.GetStats().TotalRequests)
	assert.Equal(t, stats.GetStats().StartTime, snap.StartTime)
}

func TestServerStats_Uptime(t *testing.T) {
	stats := NewServerStats()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, stats.Uptime(), 10*time.Millisecond)
}

// =============================================================================
// SERVER TESTS
// =============================================================================

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(Config{})
	assert.Equal(t, DefaultPort, s.Port())
	assert.Equal(t, "127.0.0.1:8787", s.Addr())

	s = NewServer(Config{Host: "0.0.0.0", Port: 9999})
	assert.Equal(t, "0.0.0.0:9999", s.Addr())
}

func TestRouteEndpoint(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ledger := &fakeLedger{}
	ts := newTestServer(t, Config{Router: rt, Ledger: ledger})

	resp, body := postJSON(t, ts.URL+"/v1/route", map[string]any{
		"prompt":          "What is the capital of France?",
		"enable_realtime": false,
		"temperature":     0.2,
		"max_tokens":      64,
		"local_profile":   "gpu_h100",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "Paris.", body["text"])
	assert.Equal(t, "local-direct", body["path"])
	assert.Equal(t, "What is the capital of France?", body["prompt"])
	assert.Equal(t, "local-direct", resp.Header.Get("X-Seven-Path"))
	assert.Equal(t, localOutcome().RequestID, resp.Header.Get("X-Request-ID"))

	call := rt.last(t)
	assert.Equal(t, "What is the capital of France?", call.prompt)
	assert.False(t, call.opts.EnableRealtime)
	assert.True(t, call.opts.AutoEscalate)
	assert.Equal(t, 0.2, call.opts.Temperature)
	assert.Equal(t, 64, call.opts.MaxTokens)
	assert.Equal(t, "gpu_h100", call.opts.LocalProfile)
	assert.False(t, call.opts.ForceCloud)

	require.Len(t, ledger.entries, 1)
	assert.Equal(t, "local-direct", ledger.entries[0].Path)
	assert.Equal(t, "LOCAL", ledger.entries[0].Route)
}

func TestRouteEndpointValidation(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ts := newTestServer(t, Config{Router: rt})

	tests := []struct {
		name string
		body any
		want string
	}{
		{"empty prompt", map[string]any{"prompt": "  "}, "prompt must not be empty"},
		{"bad temperature", map[string]any{"prompt": "hi", "temperature": 3.5}, "temperature must be between"},
		{"bad max tokens", map[string]any{"prompt": "hi", "max_tokens": -1}, "max_tokens must be between"},
		{"unknown profile", map[string]any{"prompt": "hi", "cloud_profile": "abacus"}, "unknown cloud profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postJSON(t, ts.URL+"/v1/route", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, errorMessage(t, body), tt.want)
		})
	}

	resp, err := http.Post(ts.URL+"/v1/route", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, rt.calls)
}

func TestRouteEndpointBackendFailure(t *testing.T) {
	rt := &fakeRouter{err: &router.CombinedBackendError{
		Local: errors.New("connection refused"),
		Cloud: errors.New("secret provider detail"),
	}}
	ledger := &fakeLedger{}
	srv := NewServer(Config{Router: rt, Ledger: ledger})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, body := postJSON(t, ts.URL+"/v1/route", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.NotContains(t, errorMessage(t, body), "secret provider detail")
	assert.Empty(t, ledger.entries)
	assert.EqualValues(t, 1, srv.Stats().GetStats().Failures)
}

func TestRouteEndpointInvalidInputFromRouter(t *testing.T) {
	rt := &fakeRouter{err: router.ErrInvalidInput}
	ts := newTestServer(t, Config{Router: rt})

	resp, _ := postJSON(t, ts.URL+"/v1/route", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouteEndpointLedgerFailureStillAnswers(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ts := newTestServer(t, Config{Router: rt, Ledger: &fakeLedger{err: errors.New("disk full")}})

	resp, body := postJSON(t, ts.URL+"/v1/route", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Paris.", body["text"])
}

func TestRouteEndpointWithoutRouter(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, _ := postJSON(t, ts.URL+"/v1/route", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSetRouterSwapsBackend(t *testing.T) {
	first := &fakeRouter{out: localOutcome()}
	second := &fakeRouter{out: localOutcome()}
	srv := NewServer(Config{Router: first})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	srv.SetRouter(second)
	resp, _ := postJSON(t, ts.URL+"/v1/route", map[string]any{"prompt": "hi"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, first.calls)
	assert.Len(t, second.calls, 1)
}

// =============================================================================
// CHAT COMPLETIONS TESTS
// =============================================================================

func TestChatCompletions(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ts := newTestServer(t, Config{Router: rt})

	resp, body := postJSON(t, ts.URL+"/v1/chat/completions", map[string]any{
		"model": "seven",
		"messages": []map[string]string{
			{"role": "system", "content": "Be terse."},
			{"role": "user", "content": "Hi"},
			{"role": "assistant", "content": "Hello"},
			{"role": "user", "content": "What is the capital of France?"},
		},
		"max_tokens": 100,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	call := rt.last(t)
	assert.Equal(t, "What is the capital of France?", call.prompt)
	assert.Equal(t, "Be terse.", call.opts.SystemPrompt)
	assert.Equal(t, 100, call.opts.MaxTokens)
	assert.False(t, call.opts.ForceCloud)

	assert.Equal(t, "chat.completion", body["object"])
	assert.True(t, strings.HasPrefix(body["id"].(string), "chatcmpl-"))
	assert.Equal(t, "Llama-3.2-1B-Instruct-Hybrid", body["model"])

	choices := body["choices"].([]any)
	require.Len(t, choices, 1)
	msg := choices[0].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "assistant", msg["role"])
	assert.Equal(t, "Paris.", msg["content"])

	usage := body["usage"].(map[string]any)
	assert.EqualValues(t, 40, usage["total_tokens"])
	assert.Equal(t, "local-direct", body["seven"].(map[string]any)["path"])
}

func TestChatCompletionsCloudModelForcesCloud(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ts := newTestServer(t, Config{Router: rt})

	resp, _ := postJSON(t, ts.URL+"/v1/chat/completions", map[string]any{
		"model":    "cloud",
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, rt.last(t).opts.ForceCloud)
}

func TestChatCompletionsValidation(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ts := newTestServer(t, Config{Router: rt})

	many := make([]map[string]string, MaxMessageCount+1)
	for i := range many {
		many[i] = map[string]string{"role": "user", "content": "x"}
	}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"no messages", map[string]any{"messages": []any{}}},
		{"stream", map[string]any{"stream": true, "messages": []map[string]string{{"role": "user", "content": "hi"}}}},
		{"bad role", map[string]any{"messages": []map[string]string{{"role": "hacker", "content": "hi"}}}},
		{"too many", map[string]any{"messages": many}},
		{"no user message", map[string]any{"messages": []map[string]string{{"role": "system", "content": "hi"}}}},
		{"bad temperature", map[string]any{"temperature": -1, "messages": []map[string]string{{"role": "user", "content": "hi"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, ts.URL+"/v1/chat/completions", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Empty(t, rt.calls)
}

func TestLastUserAndSystem(t *testing.T) {
	prompt, system := lastUserAndSystem([]ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "system", Content: "sys one"},
		{Role: "user", Content: "second"},
		{Role: "system", Content: "sys two"},
		{Role: "assistant", Content: "reply"},
	})
	assert.Equal(t, "second", prompt)
	assert.Equal(t, "sys one", system)
}

// =============================================================================
// INFO ENDPOINT TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		wantStatus string
		wantLocal  string
		wantCloud  string
	}{
		{"all up", Config{Local: fakeLocal{}, Cloud: fakeCloud(true)}, "ok", "ok", "configured"},
		{"local down", Config{Local: fakeLocal{err: errors.New("refused")}, Cloud: fakeCloud(false)}, "degraded", "unavailable", "not_configured"},
		{"nothing wired", Config{}, "ok", "not_configured", "not_configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.cfg)
			resp, err := http.Get(ts.URL + "/health")
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var health HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, tt.wantLocal, health.LocalStatus)
			assert.Equal(t, tt.wantCloud, health.CloudStatus)
			assert.Equal(t, Version, health.Version)
		})
	}
}

func TestStats(t *testing.T) {
	rt := &fakeRouter{out: localOutcome()}
	ts := newTestServer(t, Config{Router: rt, Ledger: &fakeLedger{}})

	postJSON(t, ts.URL+"/v1/route", map[string]any{"prompt": "hi"})

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body["total_requests"])
	assert.EqualValues(t, 1, body["local_requests"])
	assert.EqualValues(t, 1, body["local_share"])
	session := body["session"].(map[string]any)
	assert.Equal(t, "session-1", session["id"])
	assert.EqualValues(t, 1, session["queries"])
}

func TestProfiles(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/v1/profiles")
	require.NoError(t, err)
	defer resp.Body.Close()

	var profiles ProfilesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&profiles))
	assert.Len(t, profiles.Local, len(energy.ListLocal()))
	assert.Len(t, profiles.Cloud, len(energy.ListCloud()))
	assert.Equal(t, energy.DefaultLocalProfile, profiles.DefaultLocal)
	assert.Equal(t, energy.DefaultCloudProfile, profiles.DefaultCloud)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, Config{})

	// Prime a labelled counter so it is exported.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "seven_http_requests_total")
}

func TestUnknownMethod(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/v1/route")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
