// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lemonade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/metrics"
	"github.com/jeranaias/seven/internal/offline"
)

// BackendName identifies Lemonade in logs and metrics.
const BackendName = "lemonade"

// MaxResponseSize is the maximum allowed response body size.
const MaxResponseSize = 10 * 1024 * 1024

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Lemonade client.
type ClientConfig struct {
	// BaseURL is the Lemonade API base (default: http://localhost:8000/api/v1)
	BaseURL string

	// Model is sent with every request and reported when the server omits one.
	Model string

	// Recipe and Device are optional Lemonade routing hints (e.g. "oga-hybrid", "npu").
	Recipe string
	Device string

	// Timeout per HTTP attempt (default: 30s)
	Timeout time.Duration

	// MaxRetries beyond the first attempt; 0 disables retries.
	MaxRetries int

	// Backoff is the delay before the first retry, doubled for each subsequent one.
	Backoff time.Duration

	// OnRetry, if set, observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:    "http://localhost:8000/api/v1",
		Model:      "Llama-3.2-1B-Instruct-Hybrid",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		Backoff:    500 * time.Millisecond,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a Lemonade Server. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Lemonade client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Lemonade client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	defaults := DefaultConfig()

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}

	return &Client{
		config: &cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: logging.Component("lemonade"),
	}
}

// Name implements backend.Client.
func (c *Client) Name() string { return BackendName }

// Model returns the configured model name.
func (c *Client) Model() string { return c.config.Model }

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the Lemonade server answers its health endpoint.
func (c *Client) CheckRunning(ctx context.Context) error {
	if err := offline.ValidateURL(c.config.BaseURL); err != nil {
		return &ClientError{Type: ErrTypeBlocked, Message: "Lemonade URL not allowed", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:       ErrTypeHTTP,
			Message:    "unexpected status from Lemonade: " + resp.Status,
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// =============================================================================
// CHAT COMPLETIONS
// =============================================================================

// Invoke implements backend.Client. The prompt is trimmed before sending.
// Transport failures and 5xx responses are retried up to MaxRetries times
// with delays Backoff, 2*Backoff, 4*Backoff and so on; latency covers only
// the successful attempt.
func (c *Client) Invoke(ctx context.Context, req backend.Request) (*backend.Response, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if err := offline.ValidateURL(c.config.BaseURL); err != nil {
		return nil, &ClientError{Type: ErrTypeBlocked, Message: "Lemonade URL not allowed", Cause: err}
	}

	req.Prompt = prompt
	body, err := json.Marshal(ChatRequest{
		Model:       c.config.Model,
		Messages:    req.Messages(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Recipe:      c.config.Recipe,
		Device:      c.config.Device,
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
	}
	url := c.config.BaseURL + "/chat/completions"

	var (
		result   *backend.Response
		attempts int
	)
	op := func() error {
		attempts++
		resp, err := c.attempt(ctx, url, body, prompt)
		if err != nil {
			return err
		}
		result = resp
		return nil
	}
	notify := func(err error, delay time.Duration) {
		metrics.LocalRetries.Inc()
		c.log.Warn().Err(err).Int("attempt", attempts).Dur("delay", delay).Msg("retrying Lemonade call")
		if c.config.OnRetry != nil {
			c.config.OnRetry(attempts, delay, err)
		}
	}

	err = backoff.RetryNotify(op, c.newBackOff(ctx), notify)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(BackendName, "error").Inc()
		var ce *ClientError
		if !errors.As(err, &ce) {
			ce = &ClientError{Type: ErrTypeCanceled, Message: "Lemonade request cancelled", Cause: err}
		}
		ce.Attempts = attempts
		c.log.Error().Err(ce).Int("attempts", attempts).Str("type", ce.Type.String()).Msg("Lemonade call failed")
		return nil, ce
	}

	metrics.BackendRequests.WithLabelValues(BackendName, "ok").Inc()
	metrics.BackendLatency.WithLabelValues(BackendName).Observe(result.Latency.Seconds())
	return result, nil
}

// newBackOff builds the retry schedule: no jitter, no elapsed-time cap,
// doubling from Backoff, bounded by MaxRetries and ctx.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.config.Backoff
	expo.RandomizationFactor = 0
	expo.Multiplier = 2
	expo.MaxInterval = time.Duration(math.MaxInt64)
	expo.MaxElapsedTime = 0
	expo.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.config.MaxRetries)), ctx)
}

// attempt performs one HTTP round trip. Non-retryable failures are wrapped
// in backoff.Permanent.
func (c *Client) attempt(ctx context.Context, url string, body []byte, prompt string) (*backend.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(&ClientError{Type: ErrTypeInvalidRequest, Message: "failed to create request", Cause: err})
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&ClientError{Type: ErrTypeCanceled, Message: "Lemonade request cancelled", Cause: ctx.Err()})
		}
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	latency := time.Since(start)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "Lemonade request failed", Cause: err}
	}

	if resp.StatusCode >= 400 {
		cerr := handleErrorResponse(resp.StatusCode, data)
		c.log.Debug().Int("status", resp.StatusCode).Str("message", cerr.Message).Msg("Lemonade error response")
		if cerr.Retryable() {
			return nil, cerr
		}
		return nil, backoff.Permanent(cerr)
	}

	out, err := parseResponse(data, prompt, latency, c.config.Model)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return out, nil
}

func transportError(err error) *ClientError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "Lemonade request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "Lemonade request failed", Cause: err}
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse takes the message from error.message when the body is
// JSON, the raw body when it is not, and "HTTP <code>" otherwise.
func handleErrorResponse(statusCode int, body []byte) *ClientError {
	message := fmt.Sprintf("HTTP %d", statusCode)

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		message = text
	}

	return &ClientError{
		Type:       ErrTypeHTTP,
		Message:    "Lemonade Server error: " + message,
		StatusCode: statusCode,
	}
}

// parseResponse validates the chat completions payload. The payload is
// decoded generically so that a missing content key and a null content are
// reported distinctly.
func parseResponse(body []byte, prompt string, latency time.Duration, fallbackModel string) (*backend.Response, error) {
	invalid := func(msg string, cause error) error {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg, Cause: cause}
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, invalid("failed to parse Lemonade JSON response", err)
	}

	choices, _ := data["choices"].([]any)
	if len(choices) == 0 {
		return nil, invalid("Lemonade response missing 'choices'", nil)
	}
	first, _ := choices[0].(map[string]any)
	message, _ := first["message"].(map[string]any)
	content, ok := message["content"]
	if len(message) == 0 || !ok {
		return nil, invalid("Lemonade response missing message content", nil)
	}
	if content == nil {
		return nil, invalid("Lemonade response contained null content", nil)
	}
	text, ok := content.(string)
	if !ok {
		return nil, invalid("Lemonade response contained non-text content", nil)
	}

	tokens, err := totalTokens(data["usage"])
	if err != nil {
		return nil, invalid("invalid token count in Lemonade response", err)
	}

	model, _ := data["model"].(string)
	if model == "" {
		model = fallbackModel
	}

	return &backend.Response{
		Prompt:     prompt,
		Text:       strings.TrimSpace(text),
		Model:      model,
		Latency:    latency,
		TokensUsed: tokens,
		Raw:        data,
	}, nil
}

// totalTokens extracts usage.total_tokens; absent usage yields nil.
func totalTokens(usage any) (*int, error) {
	u, _ := usage.(map[string]any)
	raw, ok := u["total_tokens"]
	if !ok || raw == nil {
		return nil, nil
	}

	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, err
		}
		f = float64(parsed)
	default:
		return nil, fmt.Errorf("unexpected type %T", raw)
	}
	switch {
	case f < 0:
		return nil, fmt.Errorf("negative count %v", raw)
	case f != math.Trunc(f):
		return nil, fmt.Errorf("fractional count %v", raw)
	case f > math.MaxInt32:
		return nil, fmt.Errorf("count %v out of range", raw)
	}
	n := int(f)
	return &n, nil
}
