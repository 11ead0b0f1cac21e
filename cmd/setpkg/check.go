// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/setpkg/setpkg/internal/dag"
	"github.com/setpkg/setpkg/internal/discovery"
	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/watch"
	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/spf13/cobra"
)

// errCheckFailed is returned when check finds at least one error.
var errCheckFailed = errors.New("package check failed")

// checkReport is the outcome of validating the search path.
type checkReport struct {
	Packages int
	Errors   []string
	Warnings []string
}

func newCheckCommand(app *App) *cobra.Command {
	var watchMode bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate every definition on the search path",
		Long: `Validate every definition on the search path.

Headers, aliases and version regexes are checked by loading each definition,
bodies are parsed without being run, and requirements that form a cycle are
reported. With --watch the check re-runs whenever a definition changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.check(cmd.Context(), watchMode)
		},
	}
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "re-run the check when definitions change")
	return cmd
}

func (a *App) check(ctx context.Context, watchMode bool) error {
	ws, err := a.open(ctx, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	if len(ws.disc.Paths()) == 0 {
		return wrapCommandError(discovery.ErrNoSearchPath, "check packages", discovery.PathEnv)
	}

	report := ws.checkAll()
	printReport(a.stdout, report)
	if !watchMode {
		if len(report.Errors) > 0 {
			return &ExitError{Code: ExitDefinition, Err: fmt.Errorf("%w: %d error(s)", errCheckFailed, len(report.Errors))}
		}
		return nil
	}

	w, err := watch.New(watch.Config{
		Roots:    ws.disc.Paths(),
		Patterns: []string{discovery.DefaultPattern, discovery.UtilitiesFile},
		OnChange: func(_ context.Context, changed []string) error {
			slog.Debug("definitions changed", "files", changed)
			if err := ws.repo.Refresh(); err != nil {
				fmt.Fprintln(a.stderr, ErrorStyle.Render("refresh failed: ")+err.Error())
				return nil
			}
			fmt.Fprintln(a.stdout)
			printReport(a.stdout, ws.checkAll())
			return nil
		},
		Stderr: a.stderr,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stderr, SubtitleStyle.Render("watching "+strings.Join(w.Roots(), ", ")+" (Ctrl-C to stop)"))
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// checkAll loads every definition, parses every body and looks for
// requirement cycles across all versions.
func (ws *workspace) checkAll() checkReport {
	var report checkReport
	defs, errs := ws.repo.LoadAll()
	for _, err := range errs {
		report.Errors = append(report.Errors, err.Error())
	}
	report.Packages = len(defs)

	// Diagnostics describe the scan LoadAll just ran.
	for _, d := range ws.disc.Diagnostics() {
		if d.Severity == discovery.SeverityError {
			report.Errors = append(report.Errors, d.Message)
		} else {
			report.Warnings = append(report.Warnings, d.Message)
		}
	}

	graph := dag.New()
	for _, def := range defs {
		graph.AddNode(def.Name)
		for _, w := range def.Warnings {
			report.Warnings = append(report.Warnings, def.Path+": "+w)
		}
		if _, err := envdiff.ParseBody(bodyOf(def)); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: body: %v", def.Path, err))
		}
		for _, row := range def.Requires {
			for _, spec := range row.Specs {
				if _, err := ws.repo.Entry(spec.Name); err != nil {
					report.Warnings = append(report.Warnings,
						fmt.Sprintf("%s: requires unknown package %q", def.Path, spec.Name))
					continue
				}
				graph.AddEdge(spec.Name, def.Name)
			}
		}
	}
	for _, cycle := range graph.Cycles() {
		report.Errors = append(report.Errors, (&dag.CycleError{Cycle: cycle}).Error())
	}
	return report
}

func bodyOf(def *pkgfile.Definition) envdiff.Body {
	return envdiff.Body{
		Source:   def.Body,
		Filename: def.Path,
		Line:     def.BodyLine,
		Dir:      filepath.Dir(def.Path),
	}
}

func printReport(w io.Writer, r checkReport) {
	for _, msg := range r.Warnings {
		fmt.Fprintln(w, WarningStyle.Render("warning: ")+msg)
	}
	for _, msg := range r.Errors {
		fmt.Fprintln(w, ErrorStyle.Render("error: ")+msg)
	}
	summary := fmt.Sprintf("%d package(s) checked, %d error(s), %d warning(s)", r.Packages, len(r.Errors), len(r.Warnings))
	if len(r.Errors) == 0 {
		fmt.Fprintln(w, SuccessStyle.Render(summary))
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render(summary))
}
