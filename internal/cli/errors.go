// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/router"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitBackendError indicates that no backend could answer
	ExitBackendError = 5
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // e.g. "ask", "stats"
	Reason  string
	Err     error
	Code    int
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports invalid arguments.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// configError wraps a configuration failure.
func configError(command string, err error) error {
	return &CommandError{Command: command, Reason: "configuration", Err: err, Code: ExitConfigError}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	switch {
	case errors.Is(err, router.ErrInvalidInput):
		return ExitUsageError
	case router.IsCombined(err), errors.Is(err, backend.ErrLocalBackend), errors.Is(err, backend.ErrCloudBackend):
		return ExitBackendError
	}
	return ExitGeneralError
}
