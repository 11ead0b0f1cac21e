// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotActive is the sentinel wrapped by NotActiveError.
	ErrNotActive = errors.New("package is not active")
	// ErrCyclicDependency is the sentinel wrapped by CyclicDependencyError.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

type (
	// NotActiveError reports an unset of a package, or of a version of it,
	// that is not active in the session.
	NotActiveError struct {
		Name string
		// Requested is the version named by the caller, if any.
		Requested string
		// Active is the version that is active instead, if any.
		Active string
	}

	// CyclicDependencyError reports a package that, through its requires
	// or subs, needs itself to be loaded first.
	CyclicDependencyError struct {
		// Cycle starts and ends with the same package.
		Cycle []string
	}
)

func (e *NotActiveError) Error() string {
	if e.Active != "" {
		return fmt.Sprintf("%s-%s cannot be removed because it is not currently set (active version is %s)",
			e.Name, e.Requested, e.Active)
	}
	return fmt.Sprintf("%s: package is not currently set", e.Name)
}

func (e *NotActiveError) Unwrap() error { return ErrNotActive }

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }
