// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned for an empty or whitespace-only prompt,
// before any network activity.
var ErrInvalidInput = errors.New("prompt must be a non-empty string")

// ErrIllegalTransition means the state machine attempted an edge outside
// its transition table.
var ErrIllegalTransition = errors.New("illegal routing transition")

// CombinedBackendError is returned when the local call and the cloud
// fallback both failed for the same prompt.
type CombinedBackendError struct {
	Local error
	Cloud error
}

func (e *CombinedBackendError) Error() string {
	return fmt.Sprintf("all backends failed. Local: %v, Cloud: %v", e.Local, e.Cloud)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *CombinedBackendError) Unwrap() []error {
	return []error{e.Local, e.Cloud}
}

// IsCombined reports whether err is a CombinedBackendError.
func IsCombined(err error) bool {
	var ce *CombinedBackendError
	return errors.As(err, &ce)
}
