// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements the process-wide offline switch.
//
// When offline mode is on, only loopback URLs may be contacted: the cheap
// backend keeps working against a local Lemonade server while the cloud
// backend and every real-time data provider are refused.
//
// # Usage
//
//	offline.SetOfflineMode(cfg.Routing.OfflineMode)
//	if err := offline.CheckCloudAllowed(); err != nil {
//	    return err
//	}
package offline
