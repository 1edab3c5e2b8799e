package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dshills/skygraph-go/eval/emit"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store.
//
// It persists memoized node values and recorded event sets in a
// single-file database. Designed for:
//   - Local build/analysis tools that cache results between invocations
//   - Development and testing with zero setup (":memory:")
//
// The store auto-migrates its schema on first use and enables WAL mode so
// concurrent readers don't block behind the single writer.
//
// Schema:
//   - node_values: (function, argument, version) -> JSON value + event set id
//   - event_sets: id -> JSON events + child set ids
//
// Values must be JSON-serializable; they round-trip through encoding/json,
// so a value computed as a struct is returned as the corresponding
// map/slice/primitive form on a later cache hit.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
	path   string
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store at path.
// Use ":memory:" for an in-memory database that vanishes on Close.
//
// Example:
//
//	st, err := store.NewSQLiteStore("./cache.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS node_values (
	function     TEXT NOT NULL,
	argument     TEXT NOT NULL,
	version      INTEGER NOT NULL,
	value        TEXT NOT NULL,
	event_set_id TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (function, argument, version)
);
CREATE TABLE IF NOT EXISTS event_sets (
	id       TEXT PRIMARY KEY,
	events   TEXT NOT NULL,
	children TEXT NOT NULL
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveValue implements Store. The value is serialized as JSON; saving a
// record for an existing (function, argument, version) overwrites it.
func (s *SQLiteStore) SaveValue(ctx context.Context, rec Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO node_values (function, argument, version, value, event_set_id)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Function, rec.Argument, rec.Version, string(valueJSON), rec.EventSetID)
	if err != nil {
		return fmt.Errorf("failed to save value: %w", err)
	}
	return nil
}

// LookupValue implements Store.
func (s *SQLiteStore) LookupValue(ctx context.Context, function, argument string, version int64) (Record, bool, error) {
	if err := s.checkOpen(); err != nil {
		return Record{}, false, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT version, value, event_set_id FROM node_values
		 WHERE function = ? AND argument = ? AND version <= ?
		 ORDER BY version DESC LIMIT 1`,
		function, argument, version)

	var (
		rec       Record
		valueJSON string
	)
	rec.Function = function
	rec.Argument = argument
	if err := row.Scan(&rec.Version, &valueJSON, &rec.EventSetID); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("failed to load value: %w", err)
	}
	if err := json.Unmarshal([]byte(valueJSON), &rec.Value); err != nil {
		return Record{}, false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return rec, true, nil
}

// SaveEventSet implements Store.
func (s *SQLiteStore) SaveEventSet(ctx context.Context, set EventSet) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	eventsJSON, err := json.Marshal(set.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	childrenJSON, err := json.Marshal(set.Children)
	if err != nil {
		return fmt.Errorf("failed to marshal children: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO event_sets (id, events, children) VALUES (?, ?, ?)`,
		set.ID, string(eventsJSON), string(childrenJSON))
	if err != nil {
		return fmt.Errorf("failed to save event set: %w", err)
	}
	return nil
}

// LookupEventSet implements Store.
func (s *SQLiteStore) LookupEventSet(ctx context.Context, id string) (EventSet, bool, error) {
	if err := s.checkOpen(); err != nil {
		return EventSet{}, false, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT events, children FROM event_sets WHERE id = ?`, id)

	var eventsJSON, childrenJSON string
	if err := row.Scan(&eventsJSON, &childrenJSON); err != nil {
		if err == sql.ErrNoRows {
			return EventSet{}, false, nil
		}
		return EventSet{}, false, fmt.Errorf("failed to load event set: %w", err)
	}

	set := EventSet{ID: id}
	if err := json.Unmarshal([]byte(eventsJSON), &set.Events); err != nil {
		return EventSet{}, false, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	if err := json.Unmarshal([]byte(childrenJSON), &set.Children); err != nil {
		return EventSet{}, false, fmt.Errorf("failed to unmarshal children: %w", err)
	}
	if set.Events == nil {
		set.Events = []emit.Event{}
	}
	return set, true, nil
}

// Close releases the database connection. Subsequent calls are no-ops.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
