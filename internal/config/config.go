// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/setpkg/setpkg/internal/issue"
	"github.com/setpkg/setpkg/pkg/platform"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "setpkg"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides of config keys.
	EnvPrefix = "SETPKG"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the setpkg configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ConfigPath returns the path of config.cue inside dir, or inside ConfigDir
// when dir is empty.
func ConfigPath(dir string) (string, error) {
	dir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("search_paths", defaults.SearchPaths)
	v.SetDefault("session.dir", defaults.Session.Dir)
	v.SetDefault("session.backend", string(defaults.Session.Backend))
	v.SetDefault("session.lock", defaults.Session.Lock)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("shell", defaults.Shell)
	v.SetDefault("body.allow_exec", defaults.Body.AllowExec)
	v.SetDefault("body.utilities", defaults.Body.Utilities)
	v.SetDefault("list_separator", defaults.ListSeparator)
	v.SetDefault("max_alias_hops", defaults.MaxAliasHops)
	v.SetDefault("aliases", defaults.Aliases)

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'setpkg config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		if err := loadCUEIntoViper(v, opts.ConfigFilePath); err != nil {
			return nil, "", loadError(opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		cuePath, err := ConfigPath(opts.ConfigDirPath)
		if err != nil {
			return nil, "", err
		}
		// A missing file means defaults.
		if fileExists(cuePath) {
			if err := loadCUEIntoViper(v, cuePath); err != nil {
				return nil, "", loadError(cuePath, err)
			}
			resolvedPath = cuePath
		}
	}

	lookup := opts.Env
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := applyEnv(v, lookup); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithSuggestion("Check the SETPKG_* variables in your environment").
			Wrap(err).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = map[string]string{}
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Run 'setpkg config dump' to see the effective values").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func loadError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(path).
		WithSuggestion("Check that the file contains valid CUE syntax").
		WithSuggestion("Verify the configuration values match the expected schema").
		WithSuggestion("See 'setpkg config --help' for configuration options").
		Wrap(err).
		BuildError()
}

// applyEnv overrides scalar keys from SETPKG_<KEY> variables, where KEY is
// the upper-cased key with dots replaced by underscores.
func applyEnv(v *viper.Viper, lookup func(string) (string, bool)) error {
	keys := v.AllKeys()
	slices.Sort(keys)
	for _, key := range keys {
		if strings.HasPrefix(key, "aliases.") || key == "aliases" {
			continue
		}
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		switch key {
		case "search_paths":
			v.Set(key, filepath.SplitList(raw))
		case "session.lock", "body.allow_exec":
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			v.Set(key, b)
		case "max_alias_hops":
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			v.Set(key, n)
		default:
			v.Set(key, raw)
		}
	}
	return nil
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Fields are optional, so validation does not require concrete values.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, path); err != nil {
		return err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes config.cue with default values into dir (or
// ConfigDir) unless one already exists. It returns the file's path.
func CreateDefaultConfig(dir string) (string, error) {
	cfgPath, err := ConfigPath(dir)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// setpkg configuration\n\n")

	sb.WriteString("search_paths: [")
	for i, p := range cfg.SearchPaths {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", p)
	}
	sb.WriteString("]\n")

	sb.WriteString("\nsession: {\n")
	if cfg.Session.Dir != "" {
		fmt.Fprintf(&sb, "\tdir: %q\n", cfg.Session.Dir)
	}
	fmt.Fprintf(&sb, "\tbackend: %q\n", cfg.Session.Backend)
	fmt.Fprintf(&sb, "\tlock: %v\n", cfg.Session.Lock)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nlog_level: %q\n", cfg.LogLevel)
	if cfg.Shell != "" {
		fmt.Fprintf(&sb, "shell: %q\n", cfg.Shell)
	}

	sb.WriteString("\nbody: {\n")
	fmt.Fprintf(&sb, "\tallow_exec: %v\n", cfg.Body.AllowExec)
	if cfg.Body.Utilities != "" {
		fmt.Fprintf(&sb, "\tutilities: %q\n", cfg.Body.Utilities)
	}
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nlist_separator: %q\n", cfg.ListSeparator)
	fmt.Fprintf(&sb, "max_alias_hops: %d\n", cfg.MaxAliasHops)

	if len(cfg.Aliases) > 0 {
		sb.WriteString("\naliases: {\n")
		names := make([]string, 0, len(cfg.Aliases))
		for name := range cfg.Aliases {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "\t%q: %q\n", name, cfg.Aliases[name])
		}
		sb.WriteString("}\n")
	}

	return sb.String()
}
