// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package session

import (
	"context"
	"errors"
)

// errLockUnavailable is returned on platforms without flock. The manager
// then runs the command unlocked.
var errLockUnavailable = errors.New("flock not available on this platform")

// Lock is the stub used where flock does not exist.
type Lock struct{}

// AcquireLock always fails with errLockUnavailable.
func AcquireLock(context.Context, string) (*Lock, error) {
	return nil, errLockUnavailable
}

// Release is a no-op.
func (l *Lock) Release() {}
