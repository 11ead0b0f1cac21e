// SPDX-License-Identifier: MPL-2.0

//go:build unix

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const lockPollInterval = 20 * time.Millisecond

// errLockUnavailable is returned on platforms without flock.
var errLockUnavailable = errors.New("flock not available on this platform")

// Lock is an exclusive advisory flock on a session's lock file. The kernel
// drops it when the descriptor closes, so a crashed process never leaves a
// session locked.
type Lock struct {
	file *os.File
}

// AcquireLock opens (or creates) path and takes an exclusive flock on it,
// waiting until the lock is free or ctx is done.
func AcquireLock(ctx context.Context, path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		slog.Debug("flock unlock failed", "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Debug("lock file close failed", "error", err)
	}
	l.file = nil
}
