// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jeranaias/seven/internal/backend"
	"github.com/jeranaias/seven/internal/energy"
	"github.com/jeranaias/seven/internal/metrics"
)

// annotator attaches energy estimates to responses. It never returns an
// error and never touches the response text.
type annotator struct {
	catalog       energy.Catalog
	defaultTokens int
	log           zerolog.Logger
}

// local sets the actual estimate, the cloud baseline and the savings.
func (a annotator) local(resp *backend.Response, localSlug, cloudSlug string) {
	if resp.IsAPIDirect() {
		return
	}
	a.guard("local", func() error {
		lp, err := a.catalog.Local(localSlug)
		if err != nil {
			return fmt.Errorf("local profile: %w", err)
		}
		cp, err := a.catalog.Cloud(cloudSlug)
		if err != nil {
			return fmt.Errorf("cloud profile: %w", err)
		}
		actual, err := lp.EstimateWithDefault(resp.TokensUsed, resp.Latency, a.defaultTokens)
		if err != nil {
			return err
		}
		baseline, err := cp.EstimateWithDefault(resp.TokensUsed, 0, a.defaultTokens)
		if err != nil {
			return err
		}

		wh, kwh := energy.Savings(actual, baseline)
		resp.Energy = &actual
		resp.BaselineEnergy = &baseline
		resp.SavingsWh = &wh
		resp.SavingsKWh = &kwh

		metrics.EnergyUsedWh.WithLabelValues("local").Add(actual.WattHours)
		if wh > 0 {
			metrics.EnergySavedWh.Add(wh)
		}
		return nil
	})
}

// cloud sets the estimate against the cloud profile.
func (a annotator) cloud(resp *backend.Response, cloudSlug string) {
	a.guard("cloud", func() error {
		cp, err := a.catalog.Cloud(cloudSlug)
		if err != nil {
			return fmt.Errorf("cloud profile: %w", err)
		}
		est, err := cp.EstimateWithDefault(resp.TokensUsed, resp.Latency, a.defaultTokens)
		if err != nil {
			return err
		}
		resp.Energy = &est
		metrics.EnergyUsedWh.WithLabelValues("cloud").Add(est.WattHours)
		return nil
	})
}

// guard runs fn, logging and swallowing any error or panic.
func (a annotator) guard(kind string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Warn().Interface("panic", r).Str("backend", kind).Msg("energy annotation failed")
		}
	}()
	if err := fn(); err != nil {
		a.log.Warn().Err(err).Str("backend", kind).Msg("energy annotation failed")
	}
}
