// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package energy estimates the energy cost of an inference call.
//
// Two fixed registries hold normalized coefficients: one for local hardware
// (NPUs, laptop and datacenter GPUs, legacy CPUs) and one for cloud model
// tiers. Each Profile carries a per-token joule figure, a per-query
// watt-hour figure, or both, optionally with a min/max range.
//
// # Key Types
//
//   - Profile: immutable coefficients for one hardware or model tier
//   - Estimate: joules, Wh and kWh derived from a profile and a token count
//   - Catalog: resolves profile slugs, used by the router's annotator
//   - Equivalent: household comparison for saved energy
//
// # Usage
//
//	local := energy.LocalProfile("npu_ryzen_ai")
//	est, err := local.Estimate(&tokens, 1200*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("%.4f Wh\n", est.WattHours)
//
// Unknown slugs resolve to DefaultLocalProfile / DefaultCloudProfile.
package energy
