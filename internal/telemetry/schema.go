// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

const (
	// SchemaVersion tracks the ledger schema version for migrations.
	SchemaVersion = 1
)

// Schema defines the ledger tables.
const Schema = `
-- One row per routed query
CREATE TABLE IF NOT EXISTS entries (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    session_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,        -- Unix nanoseconds
    path TEXT NOT NULL,
    route TEXT NOT NULL DEFAULT '',
    intent TEXT NOT NULL DEFAULT '',
    model TEXT NOT NULL,
    forced INTEGER NOT NULL DEFAULT 0,
    escalation_failed INTEGER NOT NULL DEFAULT 0,
    tokens INTEGER,                     -- NULL when the backend reported none
    latency_s REAL NOT NULL DEFAULT 0,
    used_wh REAL,                       -- NULL when not annotated
    baseline_wh REAL,
    saved_wh REAL,
    prompt_preview TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);
CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id);

-- Ledger metadata
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// InitMetadata seeds the metadata table.
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
