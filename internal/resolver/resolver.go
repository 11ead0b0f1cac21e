// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/pkg/pkgfile"
	"github.com/setpkg/setpkg/pkg/platform"
)

type (
	// Resolver applies set and unset commands to sessions.
	Resolver struct {
		repo *repository.Repository
		exec envdiff.Executor
		opts Options
	}

	// Options configures a Resolver.
	Options struct {
		// MaxAliasHops bounds alias chains; zero means the package default.
		MaxAliasHops int
		// Override returns the default-version override for a package, as
		// read by the caller from SETPKG_<NAME>_DEFAULT_VERSION. Nil means
		// no overrides.
		Override func(name string) string
		// Platform is exposed to bodies as PLATFORM_* variables.
		Platform platform.Info
		// Utilities, when set, is loaded before every body.
		Utilities *envdiff.Utilities
		// Logger receives body log output; nil means slog.Default().
		Logger *slog.Logger
		// OnEvent, when set, is called for every status event.
		OnEvent func(Event)
	}

	// Result is the outcome of a command.
	Result struct {
		// Added and Removed list "name-version" of packages loaded and
		// unloaded, in the order it happened. A reloaded package is in both.
		Added   []string
		Removed []string
		// Warnings are non-fatal problems met during the command.
		Warnings []string
		// Delta is the net change to the caller's environment.
		Delta []envdiff.Change
	}

	// txn is one command in progress.
	txn struct {
		r      *Resolver
		ctx    context.Context
		st     *session.State
		env    *envdiff.Environment
		result *Result
		// chain holds the packages whose activation is in progress, outermost
		// first.
		chain []string

		stSnap  *session.State
		envSnap *envdiff.Environment
	}
)

// New returns a Resolver loading definitions from repo and running bodies
// with exec.
func New(repo *repository.Repository, exec envdiff.Executor, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Resolver{repo: repo, exec: exec, opts: opts}
}

// Repository returns the repository definitions are loaded from.
func (r *Resolver) Repository() *repository.Repository { return r.repo }

func (r *Resolver) override(name string) string {
	if r.opts.Override == nil {
		return ""
	}
	return r.opts.Override(name)
}

func (r *Resolver) begin(ctx context.Context, st *session.State, env *envdiff.Environment) *txn {
	return &txn{
		r:       r,
		ctx:     ctx,
		st:      st,
		env:     env,
		result:  &Result{},
		stSnap:  st.Clone(),
		envSnap: env.Clone(),
	}
}

// rollback restores the session and environment to their state when the
// command began and returns err.
func (t *txn) rollback(err error) error {
	*t.st = *t.stSnap
	t.env.Restore(t.envSnap)
	slog.Debug("command rolled back", "session", t.st.ID, "error", err)
	return err
}

func (t *txn) commit() *Result {
	t.result.Delta = t.env.Delta()
	return t.result
}

func (t *txn) emit(ev Event) {
	slog.Info(string(ev.Action), "package", ev.String())
	if t.r.opts.OnEvent != nil {
		t.r.opts.OnEvent(ev)
	}
}

func (t *txn) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Warn(msg, "session", t.st.ID)
	t.result.Warnings = append(t.result.Warnings, msg)
}

// definitionDir is the directory relative paths in a body resolve against.
// Definitions that do not come from a file have none.
func definitionDir(def *pkgfile.Definition) string {
	if filepath.IsAbs(def.Path) {
		return filepath.Dir(def.Path)
	}
	return ""
}
