// Package localstore provides the durable local mirror: partitioned records
// that survive restarts, plus the pending-operation queue.
//
// Backing storage is embedded SQLite (pure Go driver) in WAL mode. Records
// live in a single table keyed (partition, id); a Put overwrites
// unconditionally, so the store is last-write-wins at record level.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	partition  TEXT NOT NULL,
	id         TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (partition, id)
);
CREATE TABLE IF NOT EXISTS ops (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	partition   TEXT NOT NULL,
	action      TEXT NOT NULL,
	payload     BLOB NOT NULL,
	enqueued_at TIMESTAMP NOT NULL
);
`

// Store is the partitioned local mirror. It is lazily opened on first use and
// safe for concurrent use within one process.
type Store struct {
	path string

	mu   sync.Mutex
	conn *sql.DB
}

// New creates a Store for the database file at path. The file and its parent
// directory are created on first use, not here.
func New(path string) *Store {
	return &Store{path: path}
}

// db opens the database on first call. An open or schema failure is reported
// as ErrStoreUnavailable and retried on the next call.
func (s *Store) db() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: mkdir: %v", errs.ErrStoreUnavailable, err)
	}
	conn, err := sql.Open("sqlite3", "file:"+s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", errs.ErrStoreUnavailable, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrStoreUnavailable, pragma, err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: schema: %v", errs.ErrStoreUnavailable, err)
	}

	s.conn = conn
	return s.conn, nil
}

// Get returns the payload stored under (partition, id), or ErrNotFound.
func (s *Store) Get(ctx context.Context, part model.Partition, id string) ([]byte, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	const q = `SELECT payload FROM records WHERE partition=? AND id=?`
	var payload []byte
	if err := conn.QueryRowContext(ctx, q, string(part), id).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

// GetAll returns every payload in the partition. Order is not guaranteed.
func (s *Store) GetAll(ctx context.Context, part model.Partition) ([][]byte, error) {
	conn, err := s.db()
	if err != nil {
		return nil, err
	}
	const q = `SELECT payload FROM records WHERE partition=?`
	rows, err := conn.QueryContext(ctx, q, string(part))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

// Put upserts the payload under (partition, id), overwriting unconditionally.
func (s *Store) Put(ctx context.Context, part model.Partition, id string, payload []byte) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	const q = `
INSERT INTO records (partition, id, payload, updated_at) VALUES (?,?,?,?)
ON CONFLICT (partition, id) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`
	_, err = conn.ExecContext(ctx, q, string(part), id, payload, time.Now().UTC())
	return err
}

// Delete removes the record under (partition, id). Missing records are not an error.
func (s *Store) Delete(ctx context.Context, part model.Partition, id string) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `DELETE FROM records WHERE partition=? AND id=?`, string(part), id)
	return err
}

// Clear removes every record in the partition. Used before a full remote
// refresh to avoid stale leftovers.
func (s *Store) Clear(ctx context.Context, part model.Partition) error {
	conn, err := s.db()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, `DELETE FROM records WHERE partition=?`, string(part))
	return err
}

// ReplacePartition clears the partition and writes the given records in one
// transaction, so readers never observe a half-refreshed partition.
func (s *Store) ReplacePartition(ctx context.Context, part model.Partition, records map[string][]byte) (err error) {
	conn, err := s.db()
	if err != nil {
		return err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM records WHERE partition=?`, string(part)); err != nil {
		return err
	}
	const ins = `INSERT INTO records (partition, id, payload, updated_at) VALUES (?,?,?,?)`
	now := time.Now().UTC()
	for id, payload := range records {
		if _, err = tx.ExecContext(ctx, ins, string(part), id, payload, now); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database if it was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
