// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/setpkg/setpkg/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// newRootCommand builds the command tree bound to app.
func newRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "setpkg",
		Short: "Per-shell versioned environment packages",
		Long: TitleStyle.Render("setpkg") + SubtitleStyle.Render(" - per-shell versioned environment packages") + `

setpkg activates packages in the current shell. A package is a definition
file on the search path that changes environment variables for one version
of a tool. Activations are tracked per shell so they can be undone exactly.

` + SubtitleStyle.Render("Getting started:") + `
  eval "$(setpkg init --shell bash)"   Install the shell functions
  setpkg ls --available                List packages on the search path
  setpkg info python                   Show versions and requirements
  setpkg set python-3.11               Activate a package (via the setpkg function)`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is $HOME/.config/setpkg/config.cue)")
	root.PersistentFlags().StringVar(&app.flags.session, "session", "", "session id (default is the parent process id)")
	root.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable debug logging and detailed errors")

	root.AddCommand(
		newSetCommand(app),
		newUnsetCommand(app),
		newRunCommand(app),
		newInfoCommand(app),
		newListCommand(app),
		newCheckCommand(app),
		newInitCommand(app),
		newConfigCommand(app),
	)
	return root
}

// Execute runs the CLI and exits with the code for the outcome.
func Execute() {
	app := NewApp(Dependencies{})
	root := newRootCommand(app)

	err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			var exitErr *ExitError
			if errors.As(err, &exitErr) && exitErr.Err == nil {
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	)
	if err == nil {
		return
	}
	code, id := classify(err)
	if app.flags.verbose {
		renderIssue(app.stderr, err, id)
	}
	os.Exit(code)
}

// renderIssue prints the suggestions and catalog page for err.
func renderIssue(w io.Writer, err error, id issue.Id) {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		fmt.Fprintln(w, ae.Format(true))
	}
	page := issue.Get(id)
	if page == nil {
		return
	}
	out, rerr := page.Render("dark")
	if rerr != nil {
		return
	}
	fmt.Fprint(w, out)
}
