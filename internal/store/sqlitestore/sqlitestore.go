// Package sqlitestore implements store.ThreadStore and store.ConfigStore
// on top of a local SQLite database via modernc.org/sqlite, a pure-Go
// driver requiring no cgo toolchain.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/loomrun/loom/internal/coreerr"
	"github.com/loomrun/loom/internal/store"
	"github.com/loomrun/loom/internal/thread"
)

var (
	_ store.ThreadStore = (*Store)(nil)
	_ store.ConfigStore = (*ConfigStore)(nil)
)

// Store is a ThreadStore backed by a single SQLite file; Config returns a
// ConfigStore on the same database. Pass ":memory:" for an ephemeral,
// process-local database.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to the database at path and ensures its schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			name TEXT NOT NULL,
			summary TEXT,
			created_date DATETIME NOT NULL,
			modified_date DATETIME NOT NULL,
			price REAL NOT NULL DEFAULT 0,
			events TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_username ON threads(username)`,
		`CREATE TABLE IF NOT EXISTS config_blobs (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlitestore: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reconstructs a Thread from its stored row.
func (s *Store) Get(ctx context.Context, id string) (*thread.Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, name, summary, created_date, modified_date, price, events
		FROM threads WHERE id = ?`, id)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, coreerr.NewNotFoundError("thread", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get thread %s: %w", id, err)
	}
	return thread.Restore(snap), nil
}

// Save upserts th's current snapshot.
func (s *Store) Save(ctx context.Context, th *thread.Thread) error {
	snap := th.ToSnapshot()
	evJSON, err := json.Marshal(snap.Events)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal events: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, username, name, summary, created_date, modified_date, price, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			name = excluded.name,
			summary = excluded.summary,
			modified_date = excluded.modified_date,
			price = excluded.price,
			events = excluded.events`,
		snap.ID, snap.Username, snap.Name, snap.Summary,
		snap.CreatedDate, snap.ModifiedDate, snap.Price, string(evJSON),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: save thread %s: %w", snap.ID, err)
	}
	return nil
}

// Delete removes a thread row by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete thread %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: delete thread %s: %w", id, err)
	}
	if n == 0 {
		return coreerr.NewNotFoundError("thread", id)
	}
	return nil
}

// List returns every stored thread's snapshot, most recently modified first.
func (s *Store) List(ctx context.Context) ([]thread.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, name, summary, created_date, modified_date, price, events
		FROM threads ORDER BY modified_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list threads: %w", err)
	}
	defer rows.Close()

	var out []thread.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: scan thread row: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (thread.Snapshot, error) {
	var snap thread.Snapshot
	var evJSON string
	if err := row.Scan(&snap.ID, &snap.Username, &snap.Name, &snap.Summary,
		&snap.CreatedDate, &snap.ModifiedDate, &snap.Price, &evJSON); err != nil {
		return thread.Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(evJSON), &snap.Events); err != nil {
		return thread.Snapshot{}, fmt.Errorf("unmarshal events: %w", err)
	}
	return snap, nil
}

// Config returns a store.ConfigStore sharing this Store's database
// connection. ThreadStore and ConfigStore are kept as separate types
// because their Get/Save/List signatures differ.
func (s *Store) Config() *ConfigStore {
	return &ConfigStore{db: s.db}
}

// ConfigStore implements store.ConfigStore on the same SQLite database
// as a Store's thread table.
type ConfigStore struct {
	db *sql.DB
}

// Get returns the named blob.
func (c *ConfigStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM config_blobs WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, coreerr.NewNotFoundError("config", key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get config %s: %w", key, err)
	}
	return data, nil
}

// Save upserts a named blob.
func (c *ConfigStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO config_blobs (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data`, key, data)
	if err != nil {
		return fmt.Errorf("sqlitestore: save config %s: %w", key, err)
	}
	return nil
}

// Delete removes a named blob.
func (c *ConfigStore) Delete(ctx context.Context, key string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM config_blobs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete config %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: delete config %s: %w", key, err)
	}
	if n == 0 {
		return coreerr.NewNotFoundError("config", key)
	}
	return nil
}

// List returns every stored blob key.
func (c *ConfigStore) List(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM config_blobs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list config: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan config key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}
