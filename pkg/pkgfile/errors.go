// SPDX-License-Identifier: MPL-2.0

package pkgfile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDefinition is the sentinel wrapped by DefinitionError.
	ErrDefinition = errors.New("invalid package definition")
	// ErrAliasCycle is the sentinel wrapped by AliasCycleError.
	ErrAliasCycle = errors.New("alias cycle")
	// ErrInvalidSpec is returned when a package token cannot be parsed.
	ErrInvalidSpec = errors.New("invalid package spec")
)

type (
	// DefinitionError reports a definition that cannot be loaded.
	// It wraps ErrDefinition and, when present, the underlying cause.
	DefinitionError struct {
		Package string
		Path    string
		Reason  string
		Err     error
	}

	// AliasCycleError reports an alias chain that never reaches a literal
	// version. It matches both ErrAliasCycle and ErrDefinition.
	AliasCycleError struct {
		Package string
		Chain   []string
	}
)

func (e *DefinitionError) Error() string {
	where := e.Package
	if e.Path != "" {
		where = e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", where, e.Reason)
}

func (e *DefinitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDefinition}
	}
	return []error{ErrDefinition, e.Err}
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("%s: alias %q does not resolve to a version: %s",
		e.Package, e.Chain[0], strings.Join(e.Chain, " -> "))
}

func (e *AliasCycleError) Unwrap() []error {
	return []error{ErrAliasCycle, ErrDefinition}
}

func definitionErr(name, path, format string, args ...any) *DefinitionError {
	return &DefinitionError{Package: name, Path: path, Reason: fmt.Sprintf(format, args...)}
}
