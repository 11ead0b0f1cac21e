// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"log/slog"
	"maps"

	"github.com/setpkg/setpkg/internal/discovery"
	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/shell"
	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/spf13/cobra"
)

func newInitCommand(app *App) *cobra.Command {
	var shellName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the shell functions that drive setpkg",
		Long: `Print the setpkg, unsetpkg, runpkg and pkgs shell functions.

setpkg and unsetpkg evaluate the code printed by 'setpkg set' and
'setpkg unset' in the calling shell. Configured aliases and the
system aliases of packages on the search path become functions that run
their package through runpkg.`,
		Example: `  eval "$(setpkg init --shell bash)"     # ~/.bashrc
  eval ` + "`setpkg init --shell tcsh`" + `       # ~/.tcshrc
  setpkg init --shell fish | source       # ~/.config/fish/config.fish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.initShell(cmd.Context(), shellName)
		},
	}
	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "shell to print functions for ("+shellNames()+")")
	return cmd
}

func (a *App) initShell(ctx context.Context, shellName string) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if err := a.setupLogging(cfg); err != nil {
		return err
	}
	environ := environMap(a.environ())
	kind, err := detectShell(shellName, cfg, environ)
	if err != nil {
		return err
	}

	program, err := a.executable()
	if err != nil {
		slog.Debug("executable path unknown, using setpkg from PATH", "error", err)
		program = ""
	}

	disc := discovery.New(discovery.SearchPaths(environ[discovery.PathEnv], cfg.SearchPaths))
	aliases := systemAliases(repository.New(disc, pkgfile.Options{MaxAliasHops: cfg.MaxAliasHops}))
	// Configured aliases win over package-provided ones.
	maps.Copy(aliases, cfg.Aliases)

	return shell.Init(a.stdout, kind, shell.InitOptions{Program: program, Aliases: aliases})
}

// systemAliases collects "<name><suffix>" -> "<name>-<version>" from every
// definition that loads. Broken definitions and unusable names are skipped.
func systemAliases(repo *repository.Repository) map[string]string {
	aliases := map[string]string{}
	defs, errs := repo.LoadAll()
	for _, err := range errs {
		slog.Debug("skipping definition for system aliases", "error", err)
	}
	for _, def := range defs {
		for _, sa := range def.SystemAlias {
			name := def.Name + sa.Suffix
			spec := pkgfile.Spec{Name: def.Name, Version: sa.Version}.String()
			if !shell.ValidAlias(name, spec) {
				slog.Warn("skipping system alias", "package", def.Name, "alias", name)
				continue
			}
			aliases[name] = spec
		}
	}
	return aliases
}
