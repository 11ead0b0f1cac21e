// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePrefix starts the name of every session record file.
const FilePrefix = "setpkg_session_"

// FileStore keeps each session in its own JSON file under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore returns a FileStore rooted at dir. An empty dir means the
// system temporary directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &FileStore{Dir: dir}
}

// Path returns the record file for id.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.Dir, FilePrefix+id+".json")
}

// Location implements Store.
func (s *FileStore) Location() string { return s.Dir }

// Load implements Store.
func (s *FileStore) Load(_ context.Context, id string) (*State, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	path := s.Path(id)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoRecord, id)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Session: id, Location: path, Err: err}
	}
	st, err := decode(data)
	if err != nil {
		return nil, &PersistenceError{Op: "decode", Session: id, Location: path, Err: err}
	}
	st.ID = id
	return st, nil
}

// Save implements Store. The record is written to a temporary file in Dir
// and renamed over the old one.
func (s *FileStore) Save(_ context.Context, st *State) error {
	if !ValidID(st.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, st.ID)
	}
	path := s.Path(st.ID)
	data, err := encode(st)
	if err != nil {
		return &PersistenceError{Op: "encode", Session: st.ID, Location: path, Err: err}
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return &PersistenceError{Op: "write", Session: st.ID, Location: path, Err: err}
	}
	if err := writeAtomic(path, data); err != nil {
		return &PersistenceError{Op: "write", Session: st.ID, Location: path, Err: err}
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	path := s.Path(id)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &PersistenceError{Op: "delete", Session: id, Location: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
