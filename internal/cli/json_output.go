// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.

package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/seven/internal/detect"
	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/router"
	"github.com/jeranaias/seven/internal/telemetry"
)

// JSONResponse is the envelope every --json command prints.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data contains the command-specific payload
	Data any `json:"data"`

	// Error is null on success
	Error *string `json:"error"`

	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// ClassifyData is the classify command payload.
type ClassifyData struct {
	Prompt string        `json:"prompt"`
	Route  router.Route  `json:"route"`
	Reason string        `json:"reason"`
	Intent router.Intent `json:"intent"`
}

// ProfilesData is the profiles command payload.
type ProfilesData struct {
	Local        []energy.Profile `json:"local"`
	Cloud        []energy.Profile `json:"cloud"`
	LocalDefault string           `json:"local_default"`
	CloudDefault string           `json:"cloud_default"`

	// Set by --detect.
	Hardware  *detect.Hardware   `json:"hardware,omitempty"`
	Suggested *detect.Suggestion `json:"suggested,omitempty"`
}

// StatsData is the stats command payload.
type StatsData struct {
	Ledger     string                  `json:"ledger"`
	Totals     *telemetry.Totals       `json:"totals"`
	Daily      []telemetry.DailyEnergy `json:"daily,omitempty"`
	Recent     []telemetry.Entry       `json:"recent,omitempty"`
	Pruned     *int64                  `json:"pruned,omitempty"`
	Equivalent string                  `json:"equivalent"`
}
