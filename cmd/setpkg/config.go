// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/setpkg/setpkg/internal/config"
	"github.com/setpkg/setpkg/internal/discovery"
	"github.com/setpkg/setpkg/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `setpkg config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage setpkg configuration",
		Long: `Manage setpkg configuration.

Configuration is stored in:
  - Linux: ~/.config/setpkg/config.cue
  - macOS: ~/Library/Application Support/setpkg/config.cue
  - Windows: %APPDATA%\setpkg\config.cue

Every key can be overridden with a SETPKG_ environment variable, for example
SETPKG_LOG_LEVEL or SETPKG_SESSION_BACKEND.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.showConfig(cmd.Context())
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig(app.configDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("Configuration file: ")+path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := app.flags.configPath
			if path == "" {
				var err error
				if path, err = config.ConfigPath(app.configDir); err != nil {
					return err
				}
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context) error {
	cfg, path, err := config.LoadWithPath(ctx, a.configOptions())
	if err != nil {
		if rendered, rerr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); rerr == nil {
			fmt.Fprint(a.stderr, rendered)
		}
		return err
	}
	writeConfig(a.stdout, cfg, path, environMap(a.environ())[discovery.PathEnv])
	return nil
}

func writeConfig(w io.Writer, cfg *config.Config, path, envPath string) {
	key := func(k string) string { return CmdStyle.Render(k) }
	value := func(v string) string {
		if v == "" {
			return SubtitleStyle.Render("(unset)")
		}
		return SuccessStyle.Render(v)
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path == "" {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), path)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s:\n", key("search_paths"))
	paths := discovery.SearchPaths(envPath, cfg.SearchPaths)
	if len(paths) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, p := range paths {
		fmt.Fprintf(w, "  - %s\n", value(p))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("session"))
	fmt.Fprintf(w, "  dir: %s\n", value(cfg.Session.Dir))
	fmt.Fprintf(w, "  backend: %s\n", value(string(cfg.Session.Backend)))
	fmt.Fprintf(w, "  lock: %s\n", value(strconv.FormatBool(cfg.Session.Lock)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("body"))
	fmt.Fprintf(w, "  allow_exec: %s\n", value(strconv.FormatBool(cfg.Body.AllowExec)))
	fmt.Fprintf(w, "  utilities: %s\n", value(cfg.Body.Utilities))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s: %s\n", key("log_level"), value(cfg.LogLevel))
	fmt.Fprintf(w, "%s: %s\n", key("shell"), value(cfg.Shell))
	fmt.Fprintf(w, "%s: %s\n", key("list_separator"), value(cfg.ListSeparator))
	fmt.Fprintf(w, "%s: %s\n", key("max_alias_hops"), value(strconv.Itoa(cfg.MaxAliasHops)))
	if len(cfg.Aliases) > 0 {
		fmt.Fprintf(w, "%s: %s\n", key("aliases"), value(joinPairs(cfg.Aliases, " -> ")))
	}
}
