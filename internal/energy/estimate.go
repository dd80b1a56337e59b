// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package energy

import (
	"errors"
	"fmt"
	"time"
)

const (
	// JoulesPerWh converts joules to watt-hours.
	JoulesPerWh = 3600.0

	// DefaultTokens is assumed when the backend did not report usage.
	DefaultTokens = 500
)

// ErrNoCoefficients is returned for a profile with neither a per-token nor a
// per-query figure.
var ErrNoCoefficients = errors.New("profile lacks usable coefficients")

// Estimate is the energy attributed to one inference call.
// Min/Max equal the nominal figure when the profile publishes no range.
type Estimate struct {
	ProfileLabel string `json:"profile_label"`
	Tokens       int    `json:"tokens"`

	Joules        float64 `json:"joules"`
	WattHours     float64 `json:"watt_hours"`
	KilowattHours float64 `json:"kilowatt_hours"`

	JoulesMin        float64 `json:"joules_min"`
	JoulesMax        float64 `json:"joules_max"`
	WattHoursMin     float64 `json:"watt_hours_min"`
	WattHoursMax     float64 `json:"watt_hours_max"`
	KilowattHoursMin float64 `json:"kilowatt_hours_min"`
	KilowattHoursMax float64 `json:"kilowatt_hours_max"`

	// AveragePowerW is zero when latency was not measured.
	AveragePowerW float64 `json:"average_power_w,omitempty"`

	Source string `json:"source"`
	Note   string `json:"note"`
}

// Estimate computes the energy for tokens generated in latency using
// DefaultTokens when tokens is nil or non-positive. A zero latency leaves
// AveragePowerW unset.
func (p Profile) Estimate(tokens *int, latency time.Duration) (Estimate, error) {
	return p.EstimateWithDefault(tokens, latency, DefaultTokens)
}

// EstimateWithDefault is Estimate with a caller-supplied fallback token count.
func (p Profile) EstimateWithDefault(tokens *int, latency time.Duration, defaultTokens int) (Estimate, error) {
	count := resolveTokenCount(tokens, defaultTokens)

	joules, err := p.joules(count, bound{})
	if err != nil {
		return Estimate{}, err
	}
	// The nominal figure succeeded, so the bounded ones cannot fail.
	jMin, _ := p.joules(count, bound{min: true})
	jMax, _ := p.joules(count, bound{max: true})

	est := Estimate{
		ProfileLabel:     p.Label,
		Tokens:           count,
		Joules:           joules,
		WattHours:        joules / JoulesPerWh,
		KilowattHours:    joules / JoulesPerWh / 1000.0,
		JoulesMin:        jMin,
		JoulesMax:        jMax,
		WattHoursMin:     jMin / JoulesPerWh,
		WattHoursMax:     jMax / JoulesPerWh,
		KilowattHoursMin: jMin / JoulesPerWh / 1000.0,
		KilowattHoursMax: jMax / JoulesPerWh / 1000.0,
		Source:           p.Source,
		Note:             p.Note,
	}
	if secs := latency.Seconds(); secs > 0 {
		est.AveragePowerW = joules / secs
	}
	return est, nil
}

func resolveTokenCount(tokens *int, defaultTokens int) int {
	if tokens == nil || *tokens <= 0 {
		return max(1, defaultTokens)
	}
	return *tokens
}

type bound struct {
	min, max bool
}

// joules applies per-token ranges first, then per-query ranges, then the
// nominal per-token figure, then the nominal per-query figure.
func (p Profile) joules(tokens int, b bound) (float64, error) {
	n := float64(tokens)
	switch {
	case b.min && p.PerTokenJMin > 0:
		return p.PerTokenJMin * n, nil
	case b.max && p.PerTokenJMax > 0:
		return p.PerTokenJMax * n, nil
	case b.min && p.PerQueryWhMin > 0:
		return p.PerQueryWhMin * JoulesPerWh, nil
	case b.max && p.PerQueryWhMax > 0:
		return p.PerQueryWhMax * JoulesPerWh, nil
	case p.PerTokenJ > 0:
		return p.PerTokenJ * n, nil
	case p.PerQueryWh > 0:
		return p.PerQueryWh * JoulesPerWh, nil
	}
	return 0, fmt.Errorf("profile %s: %w", p.Slug, ErrNoCoefficients)
}

// Savings returns baseline minus actual in Wh and kWh. The result is
// negative when the actual call cost more than the baseline.
func Savings(actual, baseline Estimate) (wh, kwh float64) {
	wh = baseline.WattHours - actual.WattHours
	return wh, wh / 1000.0
}
