// Package audit persists export receipts and security events to a local
// SQLite database. The store is append-only; nothing here updates or
// deletes a written row.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
	"github.com/vaultmaze-project/vaultmaze/internal/oneway"
)

const schema = `
CREATE TABLE IF NOT EXISTS export_records (
	id         TEXT PRIMARY KEY,
	exit_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	data_type  TEXT NOT NULL,
	data_id    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exports_user ON export_records(user_id);

CREATE TABLE IF NOT EXISTS security_events (
	id         TEXT PRIMARY KEY,
	component  TEXT NOT NULL,
	event_type TEXT NOT NULL,
	severity   TEXT NOT NULL,
	summary    TEXT NOT NULL,
	source_ip  TEXT,
	user_id    TEXT,
	layer      INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_time ON security_events(created_at);
`

// Store is a SQLite-backed audit trail. Safe for concurrent use; the
// database handle serializes writers.
type Store struct {
	logger zerolog.Logger
	db     *sql.DB
}

// Open creates or opens the audit database at path, creating parent
// directories as needed.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating audit directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing audit schema: %w", err)
	}
	return &Store{
		logger: logger.With().Str("component", "audit").Logger(),
		db:     db,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordExport writes one export receipt. Implements oneway.ExportRecorder.
func (s *Store) RecordExport(rec oneway.ExportRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO export_records (id, exit_id, user_id, data_type, data_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ExitID, rec.UserID, rec.DataType, rec.DataID, rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording export %s: %w", rec.ID, err)
	}
	return nil
}

// RecordEvent writes one security event. Persistence failures are the
// caller's to log; the event already went out on the bus.
func (s *Store) RecordEvent(event *core.SecurityEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO security_events (id, component, event_type, severity, summary, source_ip, user_id, layer, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Component, event.Type, event.Severity.String(), event.Summary,
		event.SourceIP, event.UserID, event.Layer, event.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording event %s: %w", event.ID, err)
	}
	return nil
}

// ExportsForUser returns a user's export receipts, newest first.
func (s *Store) ExportsForUser(userID string) ([]oneway.ExportRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, exit_id, user_id, data_type, data_id, created_at
		 FROM export_records WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying exports: %w", err)
	}
	defer rows.Close()

	var out []oneway.ExportRecord
	for rows.Next() {
		var rec oneway.ExportRecord
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.ExitID, &rec.UserID, &rec.DataType, &rec.DataID, &ts); err != nil {
			return nil, fmt.Errorf("scanning export: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentEvents returns the latest events, newest first.
func (s *Store) RecentEvents(limit int) ([]core.SecurityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, component, event_type, severity, summary, source_ip, user_id, layer, created_at
		 FROM security_events ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []core.SecurityEvent
	for rows.Next() {
		var ev core.SecurityEvent
		var sev string
		var ts int64
		if err := rows.Scan(&ev.ID, &ev.Component, &ev.Type, &sev, &ev.Summary, &ev.SourceIP, &ev.UserID, &ev.Layer, &ts); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Severity = core.ParseSeverity(sev)
		ev.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventCount returns the number of persisted events.
func (s *Store) EventCount() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM security_events`).Scan(&n)
	return n, err
}
