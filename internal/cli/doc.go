// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the seven command line.
//
// # Commands
//
//	seven ask PROMPT...          route one prompt and print the answer
//	seven classify PROMPT...     show the routing decision without calling a backend
//	seven profiles [--detect]    list the energy profiles, optionally suggest one
//	seven stats [--days N]       ledger totals and energy saved (--recent, --prune)
//	seven serve [--port P]       run the HTTP API
//	seven config show|init|path  inspect or create the config file
//
// Every command honors the persistent --config, --log-level and --offline
// flags. Output is colored only when stdout is a terminal and NO_COLOR is
// unset; --json switches a command to the JSONResponse envelope.
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
