// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/logging"
	"github.com/jeranaias/seven/internal/metrics"
	"github.com/jeranaias/seven/internal/offline"
)

const (
	// BackendName identifies the cloud backend in metrics and logs.
	BackendName = "cloud"

	// DefaultBaseURL is the OpenAI API base.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single cloud call.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// =============================================================================
// TYPES
// =============================================================================

// ChatRequest is the OpenAI-compatible request body.
type ChatRequest struct {
	Model       string            `json:"model"`
	Messages    []backend.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

// chatResponse is decoded with pointer fields so that a missing or null
// content is distinguishable from an empty answer.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int  `json:"prompt_tokens"`
		CompletionTokens int  `json:"completion_tokens"`
		TotalTokens      *int `json:"total_tokens"`
	} `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ClientConfig holds the cloud client settings.
type ClientConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration (without a key).
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is the single-attempt cloud backend. It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client for the given API key with default settings.
func NewClient(apiKey string) *Client {
	cfg := DefaultConfig()
	cfg.APIKey = apiKey
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client with custom configuration. Zero
// fields take their defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		config: &cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		log: logging.Component("cloud"),
	}
}

// Name implements backend.Client.
func (c *Client) Name() string { return BackendName }

// Model returns the configured model.
func (c *Client) Model() string { return c.config.Model }

// BaseURL returns the configured API base.
func (c *Client) BaseURL() string { return c.config.BaseURL }

// IsConfigured returns true if an API key is set.
func (c *Client) IsConfigured() bool { return c.config.APIKey != "" }

// APIKeyMasked returns a display form of the key that exposes no part of it.
func (c *Client) APIKeyMasked() string {
	if c.config.APIKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(c.config.APIKey), c.KeyFingerprint())
}

// KeyFingerprint returns the first 8 hex characters of the key's SHA-256.
func (c *Client) KeyFingerprint() string {
	if c.config.APIKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.config.APIKey))
	return hex.EncodeToString(h[:4])
}

// Invoke sends one chat completion request. There are no retries.
func (c *Client) Invoke(ctx context.Context, req backend.Request) (*backend.Response, error) {
	resp, err := c.invoke(ctx, req)
	if err != nil {
		var ce *ClientError
		if !errors.As(err, &ce) {
			ce = &ClientError{Type: ErrTypeUnknown, Message: "cloud request failed", Cause: err}
		}
		metrics.BackendRequests.WithLabelValues(BackendName, "error").Inc()
		c.log.Error().Err(ce).Str("type", ce.Type.String()).Str("key", c.KeyFingerprint()).Msg("cloud call failed")
		return nil, ce
	}

	metrics.BackendRequests.WithLabelValues(BackendName, "ok").Inc()
	metrics.BackendLatency.WithLabelValues(BackendName).Observe(resp.Latency.Seconds())
	return resp, nil
}

func (c *Client) invoke(ctx context.Context, req backend.Request) (*backend.Response, error) {
	if err := offline.CheckCloudAllowed(); err != nil {
		return nil, &ClientError{Type: ErrTypeBlocked, Message: "cloud backend not allowed", Cause: err}
	}
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := offline.ValidateURL(c.config.BaseURL); err != nil {
		return nil, &ClientError{Type: ErrTypeBlocked, Message: "cloud URL not allowed", Cause: err}
	}

	body, err := json.Marshal(ChatRequest{
		Model:       c.config.Model,
		Messages:    req.Messages(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "seven")

	c.log.Debug().Str("model", c.config.Model).Str("path", httpReq.URL.Path).Msg("cloud request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	// Keep the key out of anything that might log the request later.
	httpReq.Header.Del("Authorization")
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := readResponse(resp)
	latency := time.Since(start)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "cloud request failed", Cause: err}
	}
	c.log.Debug().Int("status", resp.StatusCode).Dur("latency", latency).Msg("cloud response")

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, data)
	}
	return parseResponse(data, req.Prompt, latency, c.config.Model)
}

func transportError(ctx context.Context, err error) *ClientError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ClientError{Type: ErrTypeCanceled, Message: "cloud request cancelled", Cause: ctxErr}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "cloud request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "cloud request failed", Cause: err}
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

// handleErrorResponse maps a non-200 reply to a ClientError whose cause is
// the matching provider sentinel, when there is one.
func handleErrorResponse(statusCode int, body []byte) *ClientError {
	message := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	ce := &ClientError{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("cloud provider error (HTTP %d): %s", statusCode, message),
		StatusCode: statusCode,
	}
	switch statusCode {
	case http.StatusUnauthorized:
		ce.Cause = ErrAuthFailed
	case http.StatusPaymentRequired:
		ce.Cause = ErrInsufficientCredits
	case http.StatusNotFound:
		ce.Cause = ErrModelNotFound
	case http.StatusTooManyRequests:
		ce.Cause = ErrRateLimited
	}
	return ce
}

func parseResponse(body []byte, prompt string, latency time.Duration, fallbackModel string) (*backend.Response, error) {
	invalid := func(msg string, cause error) error {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg, Cause: cause}
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, invalid("failed to parse cloud response", err)
	}
	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, invalid("failed to parse cloud response", err)
	}
	if len(chat.Choices) == 0 {
		return nil, invalid("cloud response contained no choices", nil)
	}
	content := chat.Choices[0].Message.Content
	if content == nil {
		return nil, invalid("cloud response missing message content", nil)
	}

	var tokens *int
	if chat.Usage != nil && chat.Usage.TotalTokens != nil {
		if *chat.Usage.TotalTokens < 0 {
			return nil, invalid(fmt.Sprintf("invalid token count %d in cloud response", *chat.Usage.TotalTokens), nil)
		}
		n := *chat.Usage.TotalTokens
		tokens = &n
	}

	model := chat.Model
	if model == "" {
		model = fallbackModel
	}

	return &backend.Response{
		Prompt:     prompt,
		Text:       strings.TrimSpace(*content),
		Model:      model,
		Latency:    latency,
		TokensUsed: tokens,
		Raw:        raw,
	}, nil
}
