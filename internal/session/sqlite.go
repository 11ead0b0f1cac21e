// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DatabaseFile is the SQLite database created inside the session dir.
	DatabaseFile = "setpkg_sessions.db"

	createSessions = `CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	revision   TEXT NOT NULL,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);`
	selectSession = `SELECT data FROM sessions WHERE id = ?`
	upsertSession = `INSERT INTO sessions (id, revision, data, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET revision = excluded.revision, data = excluded.data, updated_at = excluded.updated_at`
	deleteSession = `DELETE FROM sessions WHERE id = ?`
)

// SQLiteStore keeps all sessions as rows of one SQLite database.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (creating if needed) the session database in dir.
func OpenSQLite(ctx context.Context, dir string) (*SQLiteStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, DatabaseFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &PersistenceError{Op: "open", Location: path, Err: err}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Location: path, Err: err}
	}
	// One writer at a time; concurrent shells serialize on the busy timeout.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "open", Location: path, Err: err}
	}
	if _, err := db.ExecContext(ctx, createSessions); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "open", Location: path, Err: err}
	}
	return &SQLiteStore{path: path, db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Location implements Store.
func (s *SQLiteStore) Location() string { return s.path }

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*State, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, selectSession, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, id)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Session: id, Location: s.path, Err: err}
	}
	st, err := decode(data)
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Session: id, Location: s.path, Err: err}
	}
	st.ID = id
	return st, nil
}

// Save implements Store. The upsert runs in its own transaction.
func (s *SQLiteStore) Save(ctx context.Context, st *State) error {
	if !ValidID(st.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, st.ID)
	}
	data, err := encode(st)
	if err != nil {
		return &PersistenceError{Op: "encode", Session: st.ID, Location: s.path, Err: err}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "write", Session: st.ID, Location: s.path, Err: err}
	}
	updated := st.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := tx.ExecContext(ctx, upsertSession, st.ID, st.Revision, data, updated.UTC().Format(time.RFC3339Nano)); err != nil {
		tx.Rollback()
		return &PersistenceError{Op: "write", Session: st.ID, Location: s.path, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "write", Session: st.ID, Location: s.path, Err: err}
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, deleteSession, id); err != nil {
		return &PersistenceError{Op: "delete", Session: id, Location: s.path, Err: err}
	}
	return nil
}
