// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records routed queries in a local energy ledger.
//
// Every successful Route call can be appended as one Entry holding the path,
// model, token count, and the energy used and saved against the cloud
// baseline. Entries live in a SQLite database (modernc.org/sqlite, no cgo)
// and the Ledger also keeps running totals for the current process session.
//
// # Key Types
//
//   - Ledger: Open/Record/Totals/Daily over the SQLite store
//   - Entry: one routed query, built with EntryFromOutcome
//   - Totals: aggregated counts and watt-hours for a time window
//   - Session: running totals since the Ledger was opened
//
// # Usage
//
//	ledger, err := telemetry.Open(cfg.Telemetry.DBPath)
//	if err != nil {
//	    return err
//	}
//	defer ledger.Close()
//
//	out, err := r.Route(ctx, prompt, opts)
//	if err == nil {
//	    _ = ledger.Record(ctx, telemetry.EntryFromOutcome(out))
//	}
//
//	totals, _ := ledger.Totals(ctx, time.Now().AddDate(0, 0, -7))
//	fmt.Printf("Saved %.3f Wh this week\n", totals.SavedWh)
//
// # Privacy
//
// The ledger is local-only and never transmitted. Only a short preview of
// each prompt is kept.
package telemetry
