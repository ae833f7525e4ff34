package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const eventStoreSchema = `
CREATE TABLE IF NOT EXISTS crawl_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	referrer TEXT NOT NULL,
	status INTEGER,
	content_type TEXT,
	depth INTEGER NOT NULL,
	discovered_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crawl_events_run ON crawl_events(run_id);
`

// SQLiteEventStore persists crawl events to a SQLite database, tagging each
// row with the run it belongs to so several crawls can share one file.
type SQLiteEventStore struct {
	db    *sql.DB
	runID string
}

// OpenSQLiteEventStore opens or creates the database at path and starts a new run.
func OpenSQLiteEventStore(ctx context.Context, path string) (*SQLiteEventStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, eventStoreSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteEventStore{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the rows written by this store.
func (s *SQLiteEventStore) RunID() string {
	return s.runID
}

func (s *SQLiteEventStore) Record(event CrawlEvent) error {
	var status sql.NullInt64
	var contentType sql.NullString
	if event.Status != 0 {
		status = sql.NullInt64{Int64: int64(event.Status), Valid: true}
		contentType = sql.NullString{String: event.ContentType, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO crawl_events (run_id, url, referrer, status, content_type, depth, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, event.URL, event.Referrer, status, contentType, event.Depth,
		event.DiscoveredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert crawl event: %w", err)
	}
	return nil
}

// Events returns the events of runID in insertion order.
func (s *SQLiteEventStore) Events(ctx context.Context, runID string) ([]CrawlEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, referrer, status, content_type, depth, discovered_at
		 FROM crawl_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl events: %w", err)
	}
	defer rows.Close()

	var events []CrawlEvent
	for rows.Next() {
		var (
			event        CrawlEvent
			status       sql.NullInt64
			contentType  sql.NullString
			discoveredAt string
		)
		if err := rows.Scan(&event.URL, &event.Referrer, &status, &contentType, &event.Depth, &discoveredAt); err != nil {
			return nil, fmt.Errorf("failed to scan crawl event: %w", err)
		}
		event.Status = int(status.Int64)
		event.ContentType = contentType.String
		if event.DiscoveredAt, err = time.Parse(time.RFC3339Nano, discoveredAt); err != nil {
			return nil, fmt.Errorf("failed to parse event time: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *SQLiteEventStore) Close() error {
	return s.db.Close()
}
