// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"strings"

	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/issue"
	"github.com/setpkg/setpkg/internal/resolver"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/internal/shell"
	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/spf13/cobra"
)

type (
	mutateFlags struct {
		shell string
		quiet bool
		force bool
	}

	// mutation applies one resolver command to a session.
	mutation func(ctx context.Context, r *resolver.Resolver, st *session.State, env *envdiff.Environment, specs []pkgfile.Spec) (*resolver.Result, error)
)

func newSetCommand(app *App) *cobra.Command {
	var flags mutateFlags
	cmd := &cobra.Command{
		Use:   "set <package[-version]>...",
		Short: "Activate packages and print the shell code that applies them",
		Long: `Activate packages in the current session.

The shell code that applies the change is written to stdout and is meant to
be evaluated by the calling shell; the setpkg function installed by
'setpkg init' does this. Progress is written to stderr.`,
		Example: `  setpkg set python
  setpkg set python-3.11 maya-2024
  setpkg set --force tools`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force := flags.force
			return app.mutate(cmd.Context(), flags, args, "activate packages",
				func(ctx context.Context, r *resolver.Resolver, st *session.State, env *envdiff.Environment, specs []pkgfile.Spec) (*resolver.Result, error) {
					return r.Set(ctx, st, env, specs, force)
				})
		},
	}
	cmd.Flags().StringVarP(&flags.shell, "shell", "s", "", "shell dialect of the emitted code ("+shellNames()+")")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "do not print status lines")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "reload packages that are already active")
	return cmd
}

func newUnsetCommand(app *App) *cobra.Command {
	var flags mutateFlags
	cmd := &cobra.Command{
		Use:   "unset <package>...",
		Short: "Deactivate packages and print the shell code that reverts them",
		Long: `Deactivate packages in the current session.

Packages that depend on an unset package are unset with it, as are
sub-packages that nothing else needs any more.`,
		Example: `  setpkg unset python
  setpkg unset maya tools`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.mutate(cmd.Context(), flags, args, "deactivate packages",
				func(ctx context.Context, r *resolver.Resolver, st *session.State, env *envdiff.Environment, specs []pkgfile.Spec) (*resolver.Result, error) {
					return r.Unset(ctx, st, env, specs)
				})
		},
	}
	cmd.Flags().StringVarP(&flags.shell, "shell", "s", "", "shell dialect of the emitted code ("+shellNames()+")")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "do not print status lines")
	return cmd
}

// mutate runs apply inside a session transaction and writes the resulting
// environment delta to stdout in the selected shell dialect.
func (a *App) mutate(ctx context.Context, flags mutateFlags, args []string, operation string, apply mutation) error {
	specs, err := parseSpecArgs(args)
	if err != nil {
		return err
	}

	printer := &statusPrinter{w: a.stderr, quiet: flags.quiet}
	ws, err := a.open(ctx, printer.event)
	if err != nil {
		return err
	}
	defer ws.Close()

	kind, err := ws.shellKind(flags.shell)
	if err != nil {
		return err
	}

	var (
		env    *envdiff.Environment
		result *resolver.Result
	)
	st, err := ws.sessions.Do(ctx, ws.sessionID, ws.parent, func(st *session.State) error {
		printer.warnings(st.Warnings)
		env = ws.environment(st)
		var err error
		result, err = apply(ctx, ws.resolver, st, env, specs)
		return err
	})
	if err != nil {
		return wrapCommandError(err, operation, strings.Join(args, " "))
	}
	printer.warnings(result.Warnings)

	id := st.ID
	env.Assign(session.ParentEnv, &id)
	return shell.Render(a.stdout, kind, env.Delta())
}

// parseSpecArgs accepts specs as separate arguments or comma/space separated
// lists inside one argument.
func parseSpecArgs(args []string) ([]pkgfile.Spec, error) {
	var specs []pkgfile.Spec
	for _, arg := range args {
		list, err := pkgfile.ParseSpecList(arg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, list...)
	}
	return specs, nil
}

// wrapCommandError attaches the catalog page and suggestions for err.
func wrapCommandError(err error, operation, resource string) error {
	_, id := classify(err)
	ctx := issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithIssue(id).
		Wrap(err)
	if s := suggestionFor(id); s != "" {
		ctx = ctx.WithSuggestion(s)
	}
	return ctx.BuildError()
}

func suggestionFor(id issue.Id) string {
	switch id {
	case issue.UnknownPackageId:
		return "run 'setpkg ls --available' to see the packages on the search path"
	case issue.UnknownVersionId:
		return "run 'setpkg info <package>' to see its versions and aliases"
	case issue.PackageNotActiveId:
		return "run 'setpkg ls' to see the active packages"
	case issue.CyclicDependencyId, issue.DefinitionInvalidId, issue.AliasCycleId:
		return "run 'setpkg check' to validate the definitions on the search path"
	case issue.NoSearchPathId:
		return "set SETPKG_PATH or search_paths in the config file"
	default:
		return ""
	}
}

func shellNames() string {
	names := make([]string, 0, len(shell.Kinds()))
	for _, k := range shell.Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
