package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store.
//
// Designed for:
//   - Shared caches consulted by multiple evaluator processes
//   - Long-lived caches that survive machine restarts
//   - Audit trails over memoized results
//
// MySQLStore uses connection pooling; writes are single-statement upserts
// so no explicit transactions are needed.
//
// Security warning: never hardcode credentials. Read the DSN from the
// environment:
//
//	dsn := os.Getenv("MYSQL_DSN")
//	if dsn == "" {
//	    log.Fatal("MYSQL_DSN environment variable not set")
//	}
//	st, err := store.NewMySQLStore(dsn)
//
// Values must be JSON-serializable; they round-trip through
// encoding/json like in SQLiteStore.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// NewMySQLStore opens a MySQL-backed store using the given DSN, e.g.
// "user:pass@tcp(localhost:3306)/skygraph?parseTime=true". The schema is
// created on first use.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS node_values (
			function     VARCHAR(255) NOT NULL,
			argument     VARCHAR(512) NOT NULL,
			version      BIGINT NOT NULL,
			value        JSON NOT NULL,
			event_set_id VARCHAR(768) NOT NULL DEFAULT '',
			created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (function, argument, version)
		)`,
		`CREATE TABLE IF NOT EXISTS event_sets (
			id       VARCHAR(768) NOT NULL,
			events   JSON NOT NULL,
			children JSON NOT NULL,
			PRIMARY KEY (id)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveValue implements Store.
func (s *MySQLStore) SaveValue(ctx context.Context, rec Record) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO node_values (function, argument, version, value, event_set_id)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE value = VALUES(value), event_set_id = VALUES(event_set_id)`,
		rec.Function, rec.Argument, rec.Version, string(valueJSON), rec.EventSetID)
	if err != nil {
		return fmt.Errorf("failed to save value: %w", err)
	}
	return nil
}

// LookupValue implements Store.
func (s *MySQLStore) LookupValue(ctx context.Context, function, argument string, version int64) (Record, bool, error) {
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
func (s *MySQLStore) SaveEventSet(ctx context.Context, set EventSet) error {
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
		`INSERT INTO event_sets (id, events, children) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE events = VALUES(events), children = VALUES(children)`,
		set.ID, string(eventsJSON), string(childrenJSON))
	if err != nil {
		return fmt.Errorf("failed to save event set: %w", err)
	}
	return nil
}

// LookupEventSet implements Store.
func (s *MySQLStore) LookupEventSet(ctx context.Context, id string) (EventSet, bool, error) {
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
	return set, true, nil
}

// Close releases the connection pool. Subsequent calls are no-ops.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *MySQLStore) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
