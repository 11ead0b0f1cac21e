// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/setpkg/setpkg/internal/discovery"
	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/issue"
	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/resolver"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/internal/shell"
	"github.com/setpkg/setpkg/internal/version"
	"github.com/setpkg/setpkg/pkg/pkgfile"
)

// Exit codes by error kind.
const (
	ExitOK = iota
	ExitGeneral
	ExitDefinition
	ExitUnknownVersion
	ExitUnknownPackage
	ExitNotActive
	ExitCyclicDependency
	ExitBodyExecution
	ExitPersistence
	ExitAliasCycle
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

type classification struct {
	target error
	code   int
	issue  issue.Id
}

// classifications is checked in order; the first sentinel in the error's
// chain decides. Alias cycles are definition errors too, so they come first.
var classifications = []classification{
	{resolver.ErrCyclicDependency, ExitCyclicDependency, issue.CyclicDependencyId},
	{pkgfile.ErrAliasCycle, ExitAliasCycle, issue.AliasCycleId},
	{repository.ErrUnknownPackage, ExitUnknownPackage, issue.UnknownPackageId},
	{version.ErrUnknownVersion, ExitUnknownVersion, issue.UnknownVersionId},
	{resolver.ErrNotActive, ExitNotActive, issue.PackageNotActiveId},
	{envdiff.ErrBodyExecution, ExitBodyExecution, issue.BodyExecutionFailedId},
	{pkgfile.ErrDefinition, ExitDefinition, issue.DefinitionInvalidId},
	{pkgfile.ErrInvalidSpec, ExitDefinition, issue.UnknownPackageId},
	{session.ErrPersistence, ExitPersistence, issue.SessionPersistenceId},
	{discovery.ErrNoSearchPath, ExitGeneral, issue.NoSearchPathId},
	{shell.ErrUnknownShell, ExitGeneral, issue.ShellNotSupportedId},
}

// classify maps err to its exit code and catalog page.
func classify(err error) (int, issue.Id) {
	if err == nil {
		return ExitOK, 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, 0
	}
	for _, c := range classifications {
		if errors.Is(err, c.target) {
			return c.code, c.issue
		}
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ExitGeneral, ae.Issue
	}
	return ExitGeneral, 0
}
