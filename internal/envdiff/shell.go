// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrExecDenied is returned when a body runs an external program while
	// execution is disabled.
	ErrExecDenied = errors.New("external programs are disabled in package bodies")
	// ErrWriteDenied is returned when a body opens a file for writing while
	// execution is disabled.
	ErrWriteDenied = errors.New("file writes are disabled in package bodies")
	// ErrReadDenied is returned when a body reads a file outside its
	// definition directory while execution is disabled.
	ErrReadDenied = errors.New("file reads outside the definition directory are disabled in package bodies")
	// ErrUtilitiesMutate is returned when the utilities script changes the environment.
	ErrUtilitiesMutate = errors.New("utilities may not modify the environment")
)

// protectedNames are the builtins bodies rely on; functions with these
// names defined by the utilities script are dropped.
var protectedNames = []string{
	"env_set", "env_unset", "env_prepend", "env_append", "env_pop",
	"log_debug", "log_info", "log_warn", "log_error",
	"eval", "unset", "true",
}

// ShellExecutor runs bodies on the mvdan.cc/sh interpreter.
type ShellExecutor struct {
	// AllowExec permits external programs, file writes and reads outside
	// the definition directory.
	AllowExec bool
	// Stdout and Stderr receive the body's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// ParseBody parses a body without running it.
func ParseBody(body Body) (*syntax.File, error) {
	src := strings.Repeat("\n", max(body.Line-1, 0)) + body.Source
	return syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(src), body.Filename)
}

// Execute runs body with b. Only the env_* builtins change the session
// environment; plain shell assignments stay local to the interpreter.
func (x *ShellExecutor) Execute(ctx context.Context, body Body, b Bindings) error {
	fail := func(err error) error {
		return &BodyExecutionError{Package: b.Name, Version: b.Version, Path: body.Filename, Err: err}
	}

	prog, err := ParseBody(body)
	if err != nil {
		return fail(err)
	}
	prelude, err := parsePrelude(b)
	if err != nil {
		return fail(err)
	}

	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &bodyHandler{rec: b.Env, logger: logger.With("package", b.Name)}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(b.Env.Environ()...)),
		interp.StdIO(nil, writerOr(x.Stdout), writerOr(x.Stderr)),
		interp.CallHandler(h.call),
		interp.ExecHandlers(x.execMiddleware),
		interp.OpenHandler(x.openHandler(readRoots(body, b))),
	}
	if body.Dir != "" {
		opts = append(opts, interp.Dir(body.Dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return fail(err)
	}

	if err := runner.Run(ctx, prelude); err != nil {
		return fail(err)
	}

	if b.Utilities != nil {
		utils, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).
			Parse(strings.NewReader(b.Utilities.Source), b.Utilities.Path)
		if err != nil {
			return fail(fmt.Errorf("utilities: %w", err))
		}
		h.utilities = true
		err = runner.Run(ctx, utils)
		h.utilities = false
		if err := bodyError(runner, err); err != nil {
			return fail(fmt.Errorf("utilities: %w", err))
		}
		for _, name := range protectedNames {
			if _, ok := runner.Funcs[name]; ok {
				logger.Warn("utilities may not redefine builtin; ignoring", "function", name, "path", b.Utilities.Path)
				delete(runner.Funcs, name)
			}
		}
	}

	if err := bodyError(runner, runner.Run(ctx, prog)); err != nil {
		return fail(err)
	}
	return nil
}

// bodyError keeps fatal errors and explicit non-zero exits. The status of a
// body's last command alone does not fail it.
func bodyError(runner *interp.Runner, err error) error {
	var status interp.ExitStatus
	if errors.As(err, &status) {
		if runner.Exited() {
			return fmt.Errorf("exited with status %d", uint8(status))
		}
		return nil
	}
	return err
}

func parsePrelude(b Bindings) (*syntax.File, error) {
	var sb strings.Builder
	assign := func(name, value string) error {
		q, err := syntax.Quote(value, syntax.LangBash)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(&sb, "%s=%s\n", name, q)
		return nil
	}
	if err := assign("NAME", b.Name); err != nil {
		return nil, err
	}
	if err := assign("VERSION", b.Version); err != nil {
		return nil, err
	}
	sb.WriteString("VERSION_PARTS=(")
	for i, part := range b.VersionParts {
		q, err := syntax.Quote(part, syntax.LangBash)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(q)
	}
	sb.WriteString(")\n")
	vars := b.Platform.Vars()
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		if err := assign(name, vars[name]); err != nil {
			return nil, err
		}
	}
	sb.WriteString("readonly NAME VERSION VERSION_PARTS\n")
	return syntax.NewParser().Parse(strings.NewReader(sb.String()), "prelude")
}

func (x *ShellExecutor) execMiddleware(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if !x.AllowExec {
			return fmt.Errorf("%w: %s", ErrExecDenied, args[0])
		}
		return next(ctx, args)
	}
}

// readRoots lists where a body may read from: its definition directory and
// the utilities script.
func readRoots(body Body, b Bindings) []string {
	var roots []string
	if body.Dir != "" {
		roots = append(roots, filepath.Clean(body.Dir))
	}
	if b.Utilities != nil && b.Utilities.Path != "" {
		roots = append(roots, filepath.Clean(b.Utilities.Path))
	}
	return roots
}

func (x *ShellExecutor) openHandler(roots []string) interp.OpenHandlerFunc {
	next := interp.DefaultOpenHandler()
	return func(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		if x.AllowExec || path == os.DevNull {
			return next(ctx, path, flag, perm)
		}
		if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
			return nil, fmt.Errorf("%w: %s", ErrWriteDenied, path)
		}
		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(interp.HandlerCtx(ctx).Dir, abs)
		}
		if !within(filepath.Clean(abs), roots) {
			return nil, fmt.Errorf("%w: %s", ErrReadDenied, path)
		}
		return next(ctx, path, flag, perm)
	}
}

// within reports whether path is one of roots or lies below one of them.
func within(path string, roots []string) bool {
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
