// SPDX-License-Identifier: MPL-2.0

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRecord is returned by a Store when a session has no record.
	ErrNoRecord = errors.New("no session record")

	// ErrPersistence is the sentinel wrapped by PersistenceError.
	ErrPersistence = errors.New("session persistence failed")

	// ErrInvalidID is returned for session identifiers that cannot be used
	// as part of a file name.
	ErrInvalidID = errors.New("invalid session id")

	// ErrUnsupportedFormat is returned when a record was written by a newer
	// setpkg.
	ErrUnsupportedFormat = errors.New("unsupported session record format")
)

// PersistenceError reports a failure reading or writing a session record.
type PersistenceError struct {
	Op      string
	Session string
	// Location is the file or database the record lives in.
	Location string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s session %s (%s): %v", e.Op, e.Session, e.Location, e.Err)
	}
	return fmt.Sprintf("%s session %s: %v", e.Op, e.Session, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}
