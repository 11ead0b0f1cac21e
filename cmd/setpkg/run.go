// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type (
	// ProcessRunner starts a package executable and waits for it.
	ProcessRunner interface {
		// Run returns the exit code of the process. A non-nil error means the
		// process could not be started.
		Run(ctx context.Context, proc Process) (int, error)
	}

	// Process describes one executable invocation.
	Process struct {
		Path    string
		Args    []string
		Environ []string
		Stdin   io.Reader
		Stdout  io.Writer
		Stderr  io.Writer
	}

	execRunner struct{}
)

func newRunCommand(app *App) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run <package[-version]> [args...]",
		Short: "Run a package's executable in a child session",
		Long: `Run a package's executable with the package activated.

The package and its requirements are set in a child session that starts as a
copy of the current one. The current shell's environment is not changed.
Arguments after the package spec are passed to the executable, and setpkg
exits with the executable's exit code.`,
		Example: `  setpkg run python-3.11 -c 'print(1)'
  setpkg run maya`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd.Context(), args[0], args[1:], quiet)
		},
	}
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print status lines")
	return cmd
}

func (a *App) run(ctx context.Context, token string, args []string, quiet bool) error {
	spec, err := pkgfile.ParseSpec(token)
	if err != nil {
		return err
	}

	printer := &statusPrinter{w: a.stderr, quiet: quiet}
	ws, err := a.open(ctx, printer.event)
	if err != nil {
		return err
	}
	defer ws.Close()

	current, err := ws.sessions.Load(ctx, ws.sessionID, ws.parent)
	if err != nil {
		return err
	}
	printer.warnings(current.Warnings)

	child := current.Clone()
	child.ID = "run-" + uuid.NewString()
	child.Parent = ws.sessionID
	child.Revision = ""

	env := ws.environment(child)
	res, err := ws.resolver.Run(ctx, child, env, spec)
	if err != nil {
		return wrapCommandError(err, "run package", token)
	}
	printer.warnings(res.Warnings)

	// Nested setpkg calls from the executable inherit the child session.
	store := ws.sessions.Store()
	if err := store.Save(ctx, child); err != nil {
		return err
	}
	defer func() {
		if err := store.Delete(context.WithoutCancel(ctx), child.ID); err != nil {
			printer.warnings([]string{fmt.Sprintf("child session not removed: %v", err)})
		}
	}()
	environ := setEnviron(res.Environ, session.ParentEnv, child.ID)

	path, err := lookPath(res.Executable, lookupEnviron(environ, "PATH"))
	if err != nil {
		return err
	}

	code, err := a.Processes.Run(ctx, Process{
		Path:    path,
		Args:    args,
		Environ: environ,
		Stdin:   a.stdin,
		Stdout:  a.stdout,
		Stderr:  a.stderr,
	})
	if err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

func (execRunner) Run(ctx context.Context, proc Process) (int, error) {
	c := exec.CommandContext(ctx, proc.Path, proc.Args...)
	c.Env = proc.Environ
	c.Stdin = proc.Stdin
	c.Stdout = proc.Stdout
	c.Stderr = proc.Stderr
	err := c.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// lookPath finds file in the directories of pathValue, the package's PATH
// rather than setpkg's own.
func lookPath(file, pathValue string) (string, error) {
	if strings.ContainsRune(file, filepath.Separator) || strings.Contains(file, "/") {
		return exec.LookPath(file)
	}
	for _, dir := range filepath.SplitList(pathValue) {
		if dir == "" {
			dir = "."
		}
		if path, err := exec.LookPath(filepath.Join(dir, file)); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", file, exec.ErrNotFound)
}

func lookupEnviron(environ []string, name string) string {
	for i := len(environ) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(environ[i], "="); ok && k == name {
			return v
		}
	}
	return ""
}

// setEnviron returns environ with name set to value.
func setEnviron(environ []string, name, value string) []string {
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if k, _, _ := strings.Cut(kv, "="); k != name {
			out = append(out, kv)
		}
	}
	return append(out, name+"="+value)
}
