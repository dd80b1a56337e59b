// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lemonade

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/offline"
)

const okBody = `{"model":"amd/Phi-3.5-mini","choices":[{"message":{"role":"assistant","content":"  Paris.  "}}],"usage":{"total_tokens":42}}`

// sequenceServer replies with the given status/body pairs in order,
// repeating the last one.
func sequenceServer(t *testing.T, replies ...[2]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(replies) {
			n = len(replies) - 1
		}
		status := http.StatusOK
		switch replies[n][0] {
		case "503":
			status = http.StatusServiceUnavailable
		case "404":
			status = http.StatusNotFound
		case "400":
			status = http.StatusBadRequest
		case "500":
			status = http.StatusInternalServerError
		}
		w.WriteHeader(status)
		w.Write([]byte(replies[n][1]))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type retryLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (l *retryLog) record(_ int, d time.Duration, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delays = append(l.delays, d)
}

func newTestClient(url string, retries int, backoff time.Duration, log *retryLog) *Client {
	cfg := &ClientConfig{
		BaseURL:    url,
		Model:      "Llama-3.2-1B-Instruct-Hybrid",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		Backoff:    backoff,
	}
	if log != nil {
		cfg.OnRetry = log.record
	}
	return NewClientWithConfig(cfg)
}

func TestInvokeSuccess(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(okBody))
	}))
	defer srv.Close()

	client := NewClientWithConfig(&ClientConfig{
		BaseURL: srv.URL + "/api/v1/",
		Model:   "Llama-3.2-1B-Instruct-Hybrid",
		Recipe:  "oga-hybrid",
		Device:  "npu",
	})
	resp, err := client.Invoke(context.Background(), backend.Request{
		Prompt:       "  What is the capital of France?  ",
		SystemPrompt: "Answer briefly.",
		Temperature:  0.7,
		MaxTokens:    512,
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris.", resp.Text)
	assert.Equal(t, "amd/Phi-3.5-mini", resp.Model)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 42, *resp.TokensUsed)
	assert.Equal(t, "What is the capital of France?", resp.Prompt)
	assert.GreaterOrEqual(t, resp.Latency, time.Duration(0))
	assert.NotNil(t, resp.Raw["choices"])

	assert.Equal(t, "Llama-3.2-1B-Instruct-Hybrid", got.Model)
	assert.Equal(t, "oga-hybrid", got.Recipe)
	assert.Equal(t, "npu", got.Device)
	assert.False(t, got.Stream)
	assert.Equal(t, 512, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, backend.Message{Role: "system", Content: "Answer briefly."}, got.Messages[0])
	assert.Equal(t, backend.Message{Role: "user", Content: "What is the capital of France?"}, got.Messages[1])
}

func TestInvokeModelFallbackAndNoUsage(t *testing.T) {
	srv, _ := sequenceServer(t, [2]string{"200", `{"choices":[{"message":{"content":"hi"}}]}`})
	client := newTestClient(srv.URL, 0, 0, nil)

	resp, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Llama-3.2-1B-Instruct-Hybrid", resp.Model)
	assert.Nil(t, resp.TokensUsed)
}

func TestInvokeRetriesServerErrors(t *testing.T) {
	srv, calls := sequenceServer(t,
		[2]string{"503", `{"error":{"message":"warming up"}}`},
		[2]string{"503", `{"error":{"message":"warming up"}}`},
		[2]string{"200", okBody},
	)
	var log retryLog
	client := newTestClient(srv.URL, 2, 10*time.Millisecond, &log)

	resp, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", resp.Text)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, log.delays)
}

func TestInvokeRetriesExhausted(t *testing.T) {
	srv, calls := sequenceServer(t, [2]string{"503", `{"error":{"message":"overloaded"}}`})
	var log retryLog
	client := newTestClient(srv.URL, 2, time.Millisecond, &log)

	_, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, log.delays, 2)

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeHTTP, ce.Type)
	assert.Equal(t, 503, ce.StatusCode)
	assert.Equal(t, 3, ce.Attempts)
	assert.Equal(t, "Lemonade Server error: overloaded", ce.Error())
	assert.True(t, errors.Is(err, backend.ErrLocalBackend))
	assert.False(t, errors.Is(err, backend.ErrCloudBackend))
}

func TestInvokeClientErrorNotRetried(t *testing.T) {
	srv, calls := sequenceServer(t, [2]string{"404", `{"error":{"message":"model not found"}}`})
	var log retryLog
	client := newTestClient(srv.URL, 2, time.Millisecond, &log)

	_, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, log.delays)

	status, ok := IsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, status)
	assert.Contains(t, err.Error(), "model not found")
}

func TestErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json without message", `{"detail":"x"}`, "Lemonade Server error: HTTP 400"},
		{"plain text body", "bad things", "Lemonade Server error: bad things"},
		{"empty body", "", "Lemonade Server error: HTTP 400"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := sequenceServer(t, [2]string{"400", tt.body})
			client := newTestClient(srv.URL, 0, 0, nil)
			_, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestInvokeMalformedPayloadNotRetried(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `<html>`, "failed to parse Lemonade JSON response"},
		{"missing choices", `{"model":"x"}`, "Lemonade response missing 'choices'"},
		{"empty choices", `{"choices":[]}`, "Lemonade response missing 'choices'"},
		{"missing content", `{"choices":[{"message":{"role":"assistant"}}]}`, "Lemonade response missing message content"},
		{"missing message", `{"choices":[{}]}`, "Lemonade response missing message content"},
		{"null content", `{"choices":[{"message":{"content":null}}]}`, "Lemonade response contained null content"},
		{"bad tokens", `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":"many"}}`, "invalid token count in Lemonade response"},
		{"fractional tokens", `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":12.5}}`, "fractional count"},
		{"huge tokens", `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":1e12}}`, "out of range"},
		{"huge string tokens", `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":"99999999999"}}`, "out of range"},
		{"negative tokens", `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":-3}}`, "negative count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := sequenceServer(t, [2]string{"200", tt.body})
			client := newTestClient(srv.URL, 2, time.Millisecond, nil)

			_, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
			require.Error(t, err)
			assert.Equal(t, int32(1), calls.Load())
			assert.Contains(t, err.Error(), tt.want)

			var ce *ClientError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, ErrTypeInvalidResponse, ce.Type)
		})
	}
}

func TestInvokeStringTokenCount(t *testing.T) {
	srv, _ := sequenceServer(t, [2]string{"200", `{"choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":"17"}}`})
	client := newTestClient(srv.URL, 0, 0, nil)

	resp, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.NoError(t, err)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 17, *resp.TokensUsed)
}

func TestInvokeConnectionFailureRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var log retryLog
	client := newTestClient(url, 1, time.Millisecond, &log)

	_, err := client.Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Len(t, log.delays, 1)

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeConnection, ce.Type)
	assert.Equal(t, 2, ce.Attempts)
}

func TestInvokeEmptyPrompt(t *testing.T) {
	srv, calls := sequenceServer(t, [2]string{"200", okBody})
	client := newTestClient(srv.URL, 0, 0, nil)

	_, err := client.Invoke(context.Background(), backend.Request{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Equal(t, int32(0), calls.Load())
}

func TestInvokeCancelledDuringBackoff(t *testing.T) {
	srv, calls := sequenceServer(t, [2]string{"503", ""})
	ctx, cancel := context.WithCancel(context.Background())

	client := NewClientWithConfig(&ClientConfig{
		BaseURL:    srv.URL,
		MaxRetries: 2,
		Backoff:    time.Hour,
		OnRetry:    func(int, time.Duration, error) { cancel() },
	})

	_, err := client.Invoke(ctx, backend.Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(err, backend.ErrLocalBackend))
}

func TestInvokeOfflineAllowsLoopbackOnly(t *testing.T) {
	original := offline.IsOfflineMode()
	offline.SetOfflineMode(true)
	defer offline.SetOfflineMode(original)

	srv, _ := sequenceServer(t, [2]string{"200", okBody})
	_, err := newTestClient(srv.URL, 0, 0, nil).Invoke(context.Background(), backend.Request{Prompt: "hello"})
	require.NoError(t, err)

	_, err = newTestClient("http://lemonade.example.com/api/v1", 0, 0, nil).
		Invoke(context.Background(), backend.Request{Prompt: "hello"})
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeBlocked, ce.Type)
	assert.ErrorIs(t, err, offline.ErrNonLocalhost)
}

func TestCheckRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	assert.NoError(t, newTestClient(srv.URL+"/api/v1", 0, 0, nil).CheckRunning(context.Background()))
	assert.Error(t, newTestClient(srv.URL+"/wrong", 0, 0, nil).CheckRunning(context.Background()))
}

func TestDefaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{MaxRetries: -3})
	assert.Equal(t, "lemonade", c.Name())
	assert.Equal(t, "http://localhost:8000/api/v1", c.BaseURL())
	assert.Equal(t, "Llama-3.2-1B-Instruct-Hybrid", c.Model())
	assert.Equal(t, 0, c.config.MaxRetries)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}
