// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"strings"
	"time"

	"github.com/jeranaias/seven/internal/router"
	"github.com/jeranaias/seven/internal/util"
)

// PreviewWidth is the display width kept from each prompt.
const PreviewWidth = 60

// Entry is one routed query in the ledger.
type Entry struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	Path             string `json:"path"`
	Route            string `json:"route"`
	Intent           string `json:"intent,omitempty"`
	Model            string `json:"model"`
	Forced           bool   `json:"forced"`
	EscalationFailed bool   `json:"escalation_failed"`

	Tokens   *int    `json:"tokens,omitempty"`
	LatencyS float64 `json:"latency_s"`

	// Energy fields are nil when the response was not annotated.
	UsedWh     *float64 `json:"used_wh,omitempty"`
	BaselineWh *float64 `json:"baseline_wh,omitempty"`
	SavedWh    *float64 `json:"saved_wh,omitempty"`

	PromptPreview string `json:"prompt_preview"`
}

// EntryFromOutcome converts a routing outcome into a ledger entry.
// ID, SessionID and Timestamp are filled in by Record.
func EntryFromOutcome(out *router.Outcome) Entry {
	route := "FORCED"
	if out.Classification != nil {
		route = out.Classification.Route.String()
	}

	e := Entry{
		RequestID:        out.RequestID,
		Path:             string(out.Path),
		Route:            route,
		Intent:           string(out.Intent),
		Model:            out.Model,
		Forced:           out.Forced,
		EscalationFailed: out.EscalationFailed,
		Tokens:           out.TokensUsed,
		LatencyS:         out.Latency.Seconds(),
		SavedWh:          out.SavingsWh,
		PromptPreview:    preview(out.Prompt),
	}
	if out.Energy != nil {
		wh := out.Energy.WattHours
		e.UsedWh = &wh
	}
	if out.BaselineEnergy != nil {
		wh := out.BaselineEnergy.WattHours
		e.BaselineWh = &wh
	}
	return e
}

func preview(prompt string) string {
	return util.TruncateWidth(strings.Join(strings.Fields(prompt), " "), PreviewWidth)
}
