// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package lemonade

import (
	"errors"

	"github.com/jeranaias/seven/internal/backend"
)

// ClientError represents an error from the Lemonade client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error

	// StatusCode is the HTTP status for ErrTypeHTTP errors.
	StatusCode int
	// Attempts is the number of HTTP attempts made before giving up.
	Attempts int
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

// Is matches backend.ErrLocalBackend.
func (e *ClientError) Is(target error) bool {
	return target == backend.ErrLocalBackend
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeInvalidRequest
	ErrTypeBlocked
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeHTTP
	ErrTypeInvalidResponse
	ErrTypeCanceled
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidRequest:
		return "invalid_request"
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

// Retryable reports whether the failure class is retried by Invoke.
func (e *ClientError) Retryable() bool {
	switch e.Type {
	case ErrTypeConnection, ErrTypeTimeout:
		return true
	case ErrTypeHTTP:
		return e.StatusCode >= 500 && e.StatusCode < 600
	default:
		return false
	}
}

// ErrEmptyPrompt is returned for a blank prompt before any request is made.
var ErrEmptyPrompt = &ClientError{Type: ErrTypeInvalidRequest, Message: "prompt must be a non-empty string"}

// IsTimeout reports whether err is a Lemonade timeout.
func IsTimeout(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == ErrTypeTimeout
}

// IsHTTPError reports whether err is a Lemonade HTTP error response and
// returns its status code.
func IsHTTPError(err error) (int, bool) {
	var ce *ClientError
	if errors.As(err, &ce) && ce.Type == ErrTypeHTTP {
		return ce.StatusCode, true
	}
	return 0, false
}
