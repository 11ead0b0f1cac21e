// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/setpkg/setpkg/internal/issue"
	"github.com/setpkg/setpkg/internal/testutil"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func load(t *testing.T, opts LoadOptions) (*Config, string, error) {
	t.Helper()
	if opts.Env == nil {
		opts.Env = noEnv
	}
	return LoadWithPath(context.Background(), opts)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Session.Backend != BackendFile {
		t.Errorf("Session.Backend = %q, want file", cfg.Session.Backend)
	}
	if !cfg.Session.Lock {
		t.Error("Session.Lock should default to true")
	}
	if cfg.Body.AllowExec {
		t.Error("Body.AllowExec should default to false")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.ListSeparator != string(os.PathListSeparator) {
		t.Errorf("ListSeparator = %q", cfg.ListSeparator)
	}
	if valid, errs := cfg.IsValid(); !valid {
		t.Errorf("DefaultConfig() is invalid: %v", errs)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, path, err := load(t, LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want empty", path)
	}
	if cfg.MaxAliasHops != DefaultConfig().MaxAliasHops {
		t.Errorf("MaxAliasHops = %d", cfg.MaxAliasHops)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), `
search_paths: ["/studio/packages", "/home/artist/packages"]
session: {
	backend: "sqlite"
	lock: false
}
log_level: "debug"
shell: "tcsh"
body: allow_exec: true
aliases: {
	nuke6: "nuke-6.0v6"
}
`)

	cfg, path, err := load(t, LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if path != filepath.Join(dir, "config.cue") {
		t.Errorf("resolved path = %q", path)
	}
	if !slices.Equal(cfg.SearchPaths, []string{"/studio/packages", "/home/artist/packages"}) {
		t.Errorf("SearchPaths = %v", cfg.SearchPaths)
	}
	if cfg.Session.Backend != BackendSQLite || cfg.Session.Lock {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.LogLevel != "debug" || cfg.Shell != "tcsh" || !cfg.Body.AllowExec {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Aliases["nuke6"] != "nuke-6.0v6" {
		t.Errorf("Aliases = %v", cfg.Aliases)
	}
	// Unset keys keep their defaults.
	if cfg.MaxAliasHops != DefaultConfig().MaxAliasHops {
		t.Errorf("MaxAliasHops = %d", cfg.MaxAliasHops)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"bad backend":  `session: backend: "redis"`,
		"bad level":    `log_level: "loud"`,
		"unknown key":  `colour: "red"`,
		"hops too low": `max_alias_hops: 0`,
		"syntax":       `session: {`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "custom.cue")
			testutil.MustWriteFile(t, path, body)

			_, _, err := load(t, LoadOptions{ConfigFilePath: path})
			if err == nil {
				t.Fatal("Load() should reject the file")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error = %T, want *issue.ActionableError", err)
			}
			if !strings.Contains(err.Error(), "custom.cue") {
				t.Errorf("error %q does not name the file", err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, _, err := load(t, LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue")})
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), `log_level: "info"`)

	env := envMap(map[string]string{
		"SETPKG_LOG_LEVEL":       "error",
		"SETPKG_SESSION_BACKEND": "sqlite",
		"SETPKG_SESSION_LOCK":    "false",
		"SETPKG_MAX_ALIAS_HOPS":  "4",
		"SETPKG_SEARCH_PATHS":    strings.Join([]string{"/a", "/b"}, string(os.PathListSeparator)),

		// Session ids share the prefix but are not config keys.
		"SETPKG_SESSION": "4242",
	})

	cfg, _, err := load(t, LoadOptions{ConfigDirPath: dir, Env: env})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error", cfg.LogLevel)
	}
	if cfg.Session.Backend != BackendSQLite || cfg.Session.Lock {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.MaxAliasHops != 4 {
		t.Errorf("MaxAliasHops = %d, want 4", cfg.MaxAliasHops)
	}
	if !slices.Equal(cfg.SearchPaths, []string{"/a", "/b"}) {
		t.Errorf("SearchPaths = %v", cfg.SearchPaths)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Parallel()

	tests := map[string]map[string]string{
		"backend": {"SETPKG_SESSION_BACKEND": "redis"},
		"bool":    {"SETPKG_SESSION_LOCK": "sometimes"},
		"int":     {"SETPKG_MAX_ALIAS_HOPS": "many"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, _, err := load(t, LoadOptions{ConfigDirPath: t.TempDir(), Env: envMap(env)}); err == nil {
				t.Error("Load() should reject the override")
			}
		})
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultConfig()
	want.SearchPaths = []string{"/studio/packages"}
	want.Session.Backend = BackendSQLite
	want.Session.Dir = "/var/tmp/setpkg"
	want.Aliases = map[string]string{"maya": "maya-2024", "nuke6": "nuke-6.0v6"}

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, "config.cue"), GenerateCUE(want))

	got, _, err := load(t, LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatalf("Load() of generated config error = %v", err)
	}
	if got.Session != want.Session || !slices.Equal(got.SearchPaths, want.SearchPaths) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
	if len(got.Aliases) != 2 || got.Aliases["nuke6"] != "nuke-6.0v6" {
		t.Errorf("Aliases = %v", got.Aliases)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "setpkg")
	path, err := CreateDefaultConfig(dir)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}

	// A second call leaves the existing file alone.
	if err := os.WriteFile(path, []byte(`log_level: "debug"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateDefaultConfig(dir); err != nil {
		t.Fatalf("CreateDefaultConfig() second call error = %v", err)
	}
	cfg, _, err := load(t, LoadOptions{ConfigDirPath: dir})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("existing config overwritten: LogLevel = %q", cfg.LogLevel)
	}
}

func TestSessionBackend_IsValid(t *testing.T) {
	t.Parallel()

	for _, b := range []SessionBackend{BackendFile, BackendSQLite} {
		if valid, errs := b.IsValid(); !valid {
			t.Errorf("%q.IsValid() = false, %v", b, errs)
		}
	}
	valid, errs := SessionBackend("redis").IsValid()
	if valid || len(errs) != 1 || !errors.Is(errs[0], ErrInvalidSessionBackend) {
		t.Errorf("IsValid(redis) = %v, %v", valid, errs)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"":                nil,
		"session.backend": {"session", "backend"},
		"search_paths[1]": {"search_paths", "1"},
		"aliases.nuke6":   {"aliases", "nuke6"},
		"0":               {"0"},
	}
	for want, path := range tests {
		if got := formatPath(path); got != want {
			t.Errorf("formatPath(%v) = %q, want %q", path, got, want)
		}
	}
}
