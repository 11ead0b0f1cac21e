// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/setpkg/setpkg/internal/resolver"
	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// Output formats of the read commands.
const (
	formatText = "text"
	formatJSON = "json"
	formatTOML = "toml"
)

func newInfoCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info <package[-version]>",
		Short: "Show a package's versions, requirements and state",
		Example: `  setpkg info python
  setpkg info python-3.11 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.info(cmd.Context(), args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format (text, json, toml)")
	return cmd
}

func (a *App) info(ctx context.Context, token, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	spec, err := pkgfile.ParseSpec(token)
	if err != nil {
		return err
	}
	ws, err := a.open(ctx, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	st, err := ws.sessions.Load(ctx, ws.sessionID, ws.parent)
	if err != nil {
		return err
	}
	info, err := ws.resolver.Info(st, spec)
	if err != nil {
		return wrapCommandError(err, "describe package", token)
	}
	if format != formatText {
		return encode(a.stdout, format, info)
	}
	renderInfo(a.stdout, info)
	return nil
}

func renderInfo(w io.Writer, info *resolver.Info) {
	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintln(w, labelStyle.Render(label)+value)
	}
	fmt.Fprintln(w, TitleStyle.Render(info.Name))
	row("path:", info.Path)
	row("executable:", info.Executable)
	row("versions:", strings.Join(info.Versions, " "))
	row("default:", info.DefaultVersion)
	row("aliases:", joinPairs(info.Aliases, " -> "))
	if info.Active != "" {
		active := SuccessStyle.Render(info.Active)
		if info.Stale {
			active += " " + WarningStyle.Render("(stale)")
		}
		row("active:", active)
	}
	if info.Version != "" && info.Version != info.Active {
		row("evaluated for:", info.Version)
	}
	row("requires:", strings.Join(info.Requires, " "))
	row("subpackages:", strings.Join(info.Subs, " "))
	row("dependents:", strings.Join(info.Dependents, " "))
	row("run commands:", joinPairs(info.RunCmds, ": "))
	row("variables:", strings.Join(info.Variables, " "))
}

// joinPairs renders m sorted by key.
func joinPairs(m map[string]string, sep string) string {
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, k+sep+m[k])
	}
	return strings.Join(parts, ", ")
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatTOML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected text, json or toml)", format)
	}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatTOML:
		return toml.NewEncoder(w).Encode(v)
	default:
		return checkFormat(format)
	}
}
