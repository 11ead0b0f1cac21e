// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/setpkg/setpkg/pkg/platform"
)

// ErrBodyExecution is the sentinel wrapped by BodyExecutionError.
var ErrBodyExecution = errors.New("package body failed")

type (
	// Executor runs a package body against its bindings.
	Executor interface {
		Execute(ctx context.Context, body Body, b Bindings) error
	}

	// Body is the executable part of a definition.
	Body struct {
		Source   string
		Filename string
		// Line is the 1-based line of Filename on which Source starts.
		Line int
		// Dir is the working directory for the body, normally the directory
		// holding the definition.
		Dir string
	}

	// Bindings is the complete set of names a body can see.
	Bindings struct {
		Env          *Recorder
		Name         string
		Version      string
		VersionParts []string
		Logger       *slog.Logger
		Platform     platform.Info
		// Utilities is an optional user script whose functions are made
		// available to every body.
		Utilities *Utilities
	}

	// Utilities is a user-provided shell script of helper functions.
	Utilities struct {
		Path   string
		Source string
	}

	// BodyExecutionError wraps a failure raised while running a body.
	BodyExecutionError struct {
		Package string
		Version string
		Path    string
		Err     error
	}
)

func (e *BodyExecutionError) Error() string {
	name := e.Package
	if e.Version != "" {
		name += "-" + e.Version
	}
	if e.Path != "" {
		return fmt.Sprintf("%s (%s): %v", name, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", name, e.Err)
}

func (e *BodyExecutionError) Unwrap() []error {
	return []error{ErrBodyExecution, e.Err}
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, body Body, b Bindings) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, body Body, b Bindings) error {
	return f(ctx, body, b)
}
