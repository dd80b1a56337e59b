// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/seven/internal/logging"
)

// =============================================================================
// LEDGER
// =============================================================================

// ErrNoEntry is returned by Get for an unknown entry ID.
var ErrNoEntry = errors.New("ledger entry not found")

// Ledger persists routed queries and tracks the current session.
type Ledger struct {
	db   *sql.DB
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	session *Session
}

// Session holds running totals since the Ledger was opened.
type Session struct {
	ID         string         `json:"id"`
	StartTime  time.Time      `json:"start_time"`
	Queries    int            `json:"queries"`
	ByPath     map[string]int `json:"by_path"`
	UsedWh     float64        `json:"used_wh"`
	BaselineWh float64        `json:"baseline_wh"`
	SavedWh    float64        `json:"saved_wh"`
}

// Totals aggregates ledger rows for a time window.
type Totals struct {
	Since      time.Time      `json:"since"`
	Queries    int            `json:"queries"`
	ByPath     map[string]int `json:"by_path"`
	UsedWh     float64        `json:"used_wh"`
	BaselineWh float64        `json:"baseline_wh"`
	SavedWh    float64        `json:"saved_wh"`
}

// DailyEnergy is one day of ledger activity.
type DailyEnergy struct {
	Date    string  `json:"date"` // YYYY-MM-DD, UTC
	Queries int     `json:"queries"`
	UsedWh  float64 `json:"used_wh"`
	SavedWh float64 `json:"saved_wh"`
}

// DefaultPath returns ~/.seven/ledger.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".seven", "ledger.db"), nil
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// Open opens (creating if needed) the ledger at path and starts a session.
// An empty path means DefaultPath.
func Open(path string) (*Ledger, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	l := &Ledger{
		db:   db,
		path: path,
		log:  logging.Component("telemetry"),
		session: &Session{
			ID:        uuid.NewString(),
			StartTime: time.Now(),
			ByPath:    make(map[string]int),
		},
	}
	l.log.Debug().Str("path", path).Str("session", l.session.ID).Msg("ledger opened")
	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// =============================================================================
// RECORDING
// =============================================================================

// Record appends e and folds it into the session totals. Missing ID and
// Timestamp are generated.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e.SessionID = l.session.ID
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO entries (
			id, request_id, session_id, created_at, path, route, intent, model,
			forced, escalation_failed, tokens, latency_s, used_wh, baseline_wh,
			saved_wh, prompt_preview
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RequestID, e.SessionID, e.Timestamp.UnixNano(), e.Path, e.Route, e.Intent, e.Model,
		boolInt(e.Forced), boolInt(e.EscalationFailed), nullInt(e.Tokens), e.LatencyS,
		nullFloat(e.UsedWh), nullFloat(e.BaselineWh), nullFloat(e.SavedWh), e.PromptPreview,
	)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	s := l.session
	s.Queries++
	s.ByPath[e.Path]++
	s.UsedWh += deref(e.UsedWh)
	s.BaselineWh += deref(e.BaselineWh)
	s.SavedWh += deref(e.SavedWh)
	return nil
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// CurrentSession returns a copy of the session totals.
func (l *Ledger) CurrentSession() Session {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := *l.session
	s.ByPath = make(map[string]int, len(l.session.ByPath))
	for k, v := range l.session.ByPath {
		s.ByPath[k] = v
	}
	return s
}

// Totals aggregates every entry recorded at or after since. A zero since
// covers the whole ledger.
func (l *Ledger) Totals(ctx context.Context, since time.Time) (*Totals, error) {
	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT path, COUNT(*), COALESCE(SUM(used_wh), 0), COALESCE(SUM(baseline_wh), 0), COALESCE(SUM(saved_wh), 0)
		FROM entries
		WHERE created_at >= ?
		GROUP BY path`, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger totals: %w", err)
	}
	defer rows.Close()

	t := &Totals{Since: since, ByPath: make(map[string]int)}
	for rows.Next() {
		var (
			path                    string
			count                   int
			used, baseline, savedWh float64
		)
		if err := rows.Scan(&path, &count, &used, &baseline, &savedWh); err != nil {
			return nil, err
		}
		t.ByPath[path] = count
		t.Queries += count
		t.UsedWh += used
		t.BaselineWh += baseline
		t.SavedWh += savedWh
	}
	return t, rows.Err()
}

// Daily returns per-day totals for the last days days, oldest first.
func (l *Ledger) Daily(ctx context.Context, days int) ([]DailyEnergy, error) {
	if days <= 0 {
		days = 1
	}
	from := time.Now().AddDate(0, 0, -days).UnixNano()

	rows, err := l.db.QueryContext(ctx, `
		SELECT date(created_at / 1000000000, 'unixepoch') AS day,
		       COUNT(*), COALESCE(SUM(used_wh), 0), COALESCE(SUM(saved_wh), 0)
		FROM entries
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day`, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily totals: %w", err)
	}
	defer rows.Close()

	out := make([]DailyEnergy, 0)
	for rows.Next() {
		var d DailyEnergy
		if err := rows.Scan(&d.Date, &d.Queries, &d.UsedWh, &d.SavedWh); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Recent returns the newest n entries, newest first.
func (l *Ledger) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, selectEntries+` ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0, n)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id.
func (l *Ledger) Get(ctx context.Context, id string) (Entry, error) {
	e, err := scanEntry(l.db.QueryRowContext(ctx, selectEntries+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNoEntry, id)
	}
	return e, err
}

// DeleteBefore removes entries older than before and returns how many.
func (l *Ledger) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM entries WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune ledger: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// HELPERS
// =============================================================================

const selectEntries = `
	SELECT id, request_id, session_id, created_at, path, route, intent, model,
	       forced, escalation_failed, tokens, latency_s, used_wh, baseline_wh,
	       saved_wh, prompt_preview
	FROM entries`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e                       Entry
		createdAt               int64
		forced, escFailed       int
		tokens                  sql.NullInt64
		used, baseline, savedWh sql.NullFloat64
	)
	err := row.Scan(&e.ID, &e.RequestID, &e.SessionID, &createdAt, &e.Path, &e.Route, &e.Intent, &e.Model,
		&forced, &escFailed, &tokens, &e.LatencyS, &used, &baseline, &savedWh, &e.PromptPreview)
	if err != nil {
		return Entry{}, err
	}
	e.Timestamp = time.Unix(0, createdAt)
	e.Forced = forced != 0
	e.EscalationFailed = escFailed != 0
	if tokens.Valid {
		n := int(tokens.Int64)
		e.Tokens = &n
	}
	e.UsedWh = floatPtr(used)
	e.BaselineWh = floatPtr(baseline)
	e.SavedWh = floatPtr(savedWh)
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
