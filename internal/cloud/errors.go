// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"errors"

	"github.com/jeranaias/seven/internal/backend"
)

// ClientError is the error returned by every failed cloud call.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error

	// StatusCode is set for ErrTypeHTTP.
	StatusCode int
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is makes every ClientError match backend.ErrCloudBackend.
func (e *ClientError) Is(target error) bool {
	return target == backend.ErrCloudBackend
}

// ErrorType classifies cloud failures.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotConfigured
	ErrTypeBlocked
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeHTTP
	ErrTypeInvalidResponse
	ErrTypeCanceled
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeNotConfigured:
		return "not_configured"
	case ErrTypeBlocked:
		return "blocked"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeHTTP:
		return "http"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	case ErrTypeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Provider error causes, reachable with errors.Is.
var (
	// ErrAuthFailed indicates an invalid or expired API key (HTTP 401).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrInsufficientCredits indicates the account cannot pay (HTTP 402).
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrModelNotFound indicates the model does not exist (HTTP 404).
	ErrModelNotFound = errors.New("model not found")

	// ErrRateLimited indicates too many requests (HTTP 429).
	ErrRateLimited = errors.New("rate limited")
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = &ClientError{Type: ErrTypeNotConfigured, Message: "cloud API key not configured"}

// IsNotConfigured reports whether err means the cloud backend has no key.
func IsNotConfigured(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeNotConfigured
}

// IsHTTPError returns the status code if err is a provider HTTP error.
func IsHTTPError(err error) (int, bool) {
	var ce *ClientError
	if errors.As(err, &ce) && ce.Type == ErrTypeHTTP {
		return ce.StatusCode, true
	}
	return 0, false
}
