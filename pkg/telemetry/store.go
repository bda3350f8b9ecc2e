// Package telemetry persists protocol-engine output (log samples and
// link-quality windows) to a SQLite database for later analysis.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    uri        TEXT NOT NULL,
    started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS samples (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id    INTEGER NOT NULL REFERENCES sessions(id),
    block_id      INTEGER NOT NULL,
    vehicle_ts_ms INTEGER NOT NULL,
    values_json   TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_samples_session ON samples(session_id, block_id);

CREATE TABLE IF NOT EXISTS link_quality (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL REFERENCES sessions(id),
    ratio      REAL NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store handles database operations for recorded telemetry. The connection
// is opened lazily on first write.
type Store struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store backed by the SQLite database at dbPath. The
// schema is initialized on first use.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL", s.dbPath))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}
		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}
		s.db = db
	})
	return s.db, s.dbErr
}

// CreateSession records the start of a recording session for one vehicle
// and returns its id.
func (s *Store) CreateSession(ctx context.Context, uri string) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"INSERT INTO sessions (uri, started_at) VALUES (?, ?)", uri, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("creating session: %w", err)
	}
	return res.LastInsertId()
}

// RecordSample persists one decoded log sample.
func (s *Store) RecordSample(ctx context.Context, sessionID int64, blockID uint8, vehicleTsMs uint32, values []float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding values: %w", err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO samples (session_id, block_id, vehicle_ts_ms, values_json) VALUES (?, ?, ?, ?)",
		sessionID, blockID, vehicleTsMs, string(data))
	if err != nil {
		return fmt.Errorf("recording sample: %w", err)
	}
	return nil
}

// RecordLinkQuality persists one link-quality window ratio.
func (s *Store) RecordLinkQuality(ctx context.Context, sessionID int64, ratio float64) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO link_quality (session_id, ratio) VALUES (?, ?)", sessionID, ratio)
	if err != nil {
		return fmt.Errorf("recording link quality: %w", err)
	}
	return nil
}

// SampleCount returns the number of samples recorded for a session.
func (s *Store) SampleCount(ctx context.Context, sessionID int64) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	var n int64
	err = db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM samples WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting samples: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.db != nil {
			s.closeErr = s.db.Close()
		}
	})
	return s.closeErr
}
