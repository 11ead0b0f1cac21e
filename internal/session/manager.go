// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ParentEnv names the variable through which a shell passes its session id
// to child shells.
const ParentEnv = "SETPKG_SESSION"

type (
	// Manager runs commands against session records.
	Manager struct {
		store   Store
		lockDir string
		now     func() time.Time
	}

	// Option configures a Manager.
	Option func(*Manager)
)

// WithLockDir enables advisory locking, with one lock file per session in
// dir. Without it commands run unlocked.
func WithLockDir(dir string) Option {
	return func(m *Manager) { m.lockDir = dir }
}

// WithClock replaces the time source used to stamp saved records.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// Load returns the state of session id without locking it. A missing or
// unreadable record yields an empty state; unreadable records add a warning.
// When id has no record and parent names another session with one, the
// result is a copy of the parent's state.
func (m *Manager) Load(ctx context.Context, id, parent string) (*State, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	st, err := m.store.Load(ctx, id)
	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, ErrNoRecord):
		return m.fromParent(ctx, id, parent), nil
	default:
		slog.Warn("discarding unreadable session record", "session", id, "error", err)
		fresh := New(id)
		fresh.Warnings = append(fresh.Warnings, fmt.Sprintf("session record unreadable, starting empty: %v", err))
		return fresh, nil
	}
}

func (m *Manager) fromParent(ctx context.Context, id, parent string) *State {
	if parent == "" || parent == id || !ValidID(parent) {
		return New(id)
	}
	st, err := m.store.Load(ctx, parent)
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			slog.Debug("parent session not inherited", "session", id, "parent", parent, "error", err)
		}
		return New(id)
	}
	slog.Debug("inheriting parent session", "session", id, "parent", parent, "packages", len(st.Packages))
	child := st.Clone()
	child.ID = id
	child.Parent = parent
	child.Revision = ""
	return child
}

// Do loads session id, passes a copy of it to fn and saves the copy when fn
// returns nil. A copy with no packages deletes the record instead. When fn
// fails the record is left untouched. The session is
// locked for the whole call when a lock dir is configured.
func (m *Manager) Do(ctx context.Context, id, parent string, fn func(*State) error) (*State, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if m.lockDir != "" {
		lock, err := AcquireLock(ctx, filepath.Join(m.lockDir, FilePrefix+id+".lock"))
		switch {
		case err == nil:
			defer lock.Release()
		case errors.Is(err, errLockUnavailable):
			slog.Debug("running without session lock", "session", id)
		default:
			return nil, &PersistenceError{Op: "lock", Session: id, Location: m.lockDir, Err: err}
		}
	}

	st, err := m.Load(ctx, id, parent)
	if err != nil {
		return nil, err
	}
	work := st.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}

	work.ID = id
	if len(work.Packages) == 0 {
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, err
		}
		work.Revision = ""
		return work, nil
	}
	work.Revision = newRevision()
	work.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, work); err != nil {
		return nil, err
	}
	return work, nil
}

// newRevision returns a time-ordered id for a saved record.
func newRevision() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
