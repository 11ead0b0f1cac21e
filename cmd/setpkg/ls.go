// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/setpkg/setpkg/internal/resolver"

	"github.com/spf13/cobra"
)

type listFlags struct {
	available bool
	format    string
}

// availableReport wraps the list for TOML, which needs a table at the top.
type availableReport struct {
	Packages []resolver.Available `json:"packages" toml:"packages"`
}

type activeReport struct {
	Session  string   `json:"session" toml:"session"`
	Packages []string `json:"packages" toml:"packages"`
}

func newListCommand(app *App) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:     "ls [glob]",
		Aliases: []string{"list"},
		Short:   "List active packages, or every package on the search path",
		Example: `  setpkg ls
  setpkg ls 'py*'
  setpkg ls --available`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			}
			return app.list(cmd.Context(), filter, flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.available, "available", "a", false, "list every package on the search path")
	cmd.Flags().StringVar(&flags.format, "format", formatText, "output format (text, json, toml)")
	return cmd
}

func (a *App) list(ctx context.Context, filter string, flags listFlags) error {
	if err := checkFormat(flags.format); err != nil {
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

	if !flags.available {
		active, err := ws.resolver.List(st, filter)
		if err != nil {
			return err
		}
		if flags.format != formatText {
			return encode(a.stdout, flags.format, activeReport{Session: st.ID, Packages: active})
		}
		for _, spec := range active {
			fmt.Fprintln(a.stdout, spec)
		}
		return nil
	}

	avail, err := ws.resolver.Available(st, filter)
	if err != nil {
		return err
	}
	if flags.format != formatText {
		return encode(a.stdout, flags.format, availableReport{Packages: avail})
	}
	for _, p := range avail {
		fmt.Fprintln(a.stdout, availableLine(p))
	}
	return nil
}

// availableLine renders "name  v1 v2 alias(->target)", marking the active
// version with '*' and the default with '(default)'.
func availableLine(p resolver.Available) string {
	if p.Error != "" {
		return CmdStyle.Render(p.Name) + "  " + ErrorStyle.Render("error: "+p.Error)
	}
	parts := make([]string, 0, len(p.Versions)+len(p.Aliases))
	for _, v := range p.Versions {
		s := v
		if v == p.DefaultVersion {
			s += "(default)"
		}
		if v == p.Active {
			s = SuccessStyle.Render("*" + s)
		}
		parts = append(parts, s)
	}
	if len(p.Aliases) > 0 {
		parts = append(parts, SubtitleStyle.Render(joinPairs(p.Aliases, "->")))
	}
	return CmdStyle.Render(p.Name) + "  " + strings.Join(parts, " ")
}
