// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/setpkg/setpkg/internal/config"
	"github.com/setpkg/setpkg/internal/discovery"
	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/logging"
	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/resolver"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/internal/shell"
	"github.com/setpkg/setpkg/internal/version"
	"github.com/setpkg/setpkg/pkg/pkgfile"
	"github.com/setpkg/setpkg/pkg/platform"
)

type (
	// App is the composition root of the CLI. Command handlers reach every
	// service and stream through it.
	App struct {
		Config     ConfigProvider
		Processes  ProcessRunner
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
		environ    func() []string
		executable func() (string, error)
		platform   func() platform.Info
		sessionID  func() string
		configDir  string

		flags globalFlags
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config     ConfigProvider
		Processes  ProcessRunner
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
		Environ    func() []string
		Executable func() (string, error)
		Platform   func() platform.Info
		// SessionID supplies the session id when --session is not given.
		SessionID func() string
		// ConfigDir replaces the platform config directory.
		ConfigDir string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	globalFlags struct {
		configPath string
		session    string
		verbose    bool
	}

	// workspace is everything one command needs, built from config and the
	// caller's environment.
	workspace struct {
		cfg       *config.Config
		environ   []string
		lookup    map[string]string
		disc      *discovery.Discovery
		repo      *repository.Repository
		resolver  *resolver.Resolver
		sessions  *session.Manager
		sessionID string
		parent    string
		closers   []func() error
	}
)

// NewApp builds an App, filling unset dependencies with production ones.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:     deps.Config,
		Processes:  deps.Processes,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		environ:    deps.Environ,
		executable: deps.Executable,
		platform:   deps.Platform,
		sessionID:  deps.SessionID,
		configDir:  deps.ConfigDir,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Processes == nil {
		app.Processes = execRunner{}
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	if app.environ == nil {
		app.environ = os.Environ
	}
	if app.executable == nil {
		app.executable = os.Executable
	}
	if app.platform == nil {
		app.platform = platform.Detect
	}
	if app.sessionID == nil {
		// The wrappers pass --session; without it the invoking shell is
		// the parent process.
		app.sessionID = func() string { return strconv.Itoa(os.Getppid()) }
	}
	return app
}

func (a *App) loadConfig(ctx context.Context) (*config.Config, error) {
	return a.Config.Load(ctx, a.configOptions())
}

// configOptions reads SETPKG_* overrides from the App's environment rather
// than the process's.
func (a *App) configOptions() config.LoadOptions {
	env := environMap(a.environ())
	return config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		ConfigDirPath:  a.configDir,
		Env: func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		},
	}
}

func (a *App) setupLogging(cfg *config.Config) error {
	level := cfg.LogLevel
	if a.flags.verbose {
		level = "debug"
	}
	_, err := logging.Setup(a.stderr, level)
	return err
}

// open loads configuration and wires the repository, resolver and session
// manager for one command. onEvent receives resolver status events.
func (a *App) open(ctx context.Context, onEvent func(resolver.Event)) (*workspace, error) {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.setupLogging(cfg); err != nil {
		return nil, err
	}

	environ := a.environ()
	lookup := environMap(environ)

	ws := &workspace{cfg: cfg, environ: environ, lookup: lookup}

	ws.sessionID = a.flags.session
	if ws.sessionID == "" {
		ws.sessionID = a.sessionID()
	}
	if !session.ValidID(ws.sessionID) {
		return nil, fmt.Errorf("%w: %q", session.ErrInvalidID, ws.sessionID)
	}
	if parent := lookup[session.ParentEnv]; parent != ws.sessionID {
		ws.parent = parent
	}

	ws.disc = discovery.New(discovery.SearchPaths(lookup[discovery.PathEnv], cfg.SearchPaths))
	ws.repo = repository.New(ws.disc, pkgfile.Options{MaxAliasHops: cfg.MaxAliasHops})

	utilities, err := loadUtilities(cfg, ws.disc)
	if err != nil {
		return nil, err
	}

	exec := &envdiff.ShellExecutor{
		AllowExec: cfg.Body.AllowExec,
		// Body output must not reach stdout, which the shell evaluates.
		Stdout: a.stderr,
		Stderr: a.stderr,
	}
	ws.resolver = resolver.New(ws.repo, exec, resolver.Options{
		MaxAliasHops: cfg.MaxAliasHops,
		Override: func(name string) string {
			return lookup[version.OverrideVariable(name)]
		},
		Platform:  a.platform(),
		Utilities: utilities,
		OnEvent:   onEvent,
	})

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ws.closers = append(ws.closers, closeStore)

	var opts []session.Option
	if cfg.Session.Lock {
		opts = append(opts, session.WithLockDir(sessionDir(cfg)))
	}
	ws.sessions = session.NewManager(store, opts...)
	return ws, nil
}

func (ws *workspace) Close() error {
	var errs []error
	for _, c := range ws.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// environment starts a tracked environment from the caller's variables with
// the reference counts of st's active packages.
func (ws *workspace) environment(st *session.State) *envdiff.Environment {
	env := envdiff.NewEnvironment(ws.environ, ws.cfg.ListSeparator)
	st.Rebuild(env)
	return env
}

// shellKind resolves the dialect for emitted code.
func (ws *workspace) shellKind(flag string) (shell.Kind, error) {
	return detectShell(flag, ws.cfg, ws.lookup)
}

// detectShell picks the dialect from the flag, then config, then $SHELL,
// falling back to cmd when only ComSpec is set and to bash otherwise.
func detectShell(flag string, cfg *config.Config, lookup map[string]string) (shell.Kind, error) {
	for _, name := range []string{flag, cfg.Shell} {
		if name != "" {
			return shell.Parse(name)
		}
	}
	if k, err := shell.Parse(lookup["SHELL"]); err == nil {
		return k, nil
	}
	if lookup["ComSpec"] != "" || lookup["COMSPEC"] != "" {
		return shell.Cmd, nil
	}
	return shell.Bash, nil
}

func sessionDir(cfg *config.Config) string {
	if cfg.Session.Dir != "" {
		return cfg.Session.Dir
	}
	return os.TempDir()
}

func openStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	dir := sessionDir(cfg)
	switch cfg.Session.Backend {
	case config.BackendSQLite:
		st, err := session.OpenSQLite(ctx, dir)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return session.NewFileStore(dir), func() error { return nil }, nil
	}
}

// loadUtilities reads the helper script from config or, failing that, the
// first setpkgutil.sh on the search path.
func loadUtilities(cfg *config.Config, disc *discovery.Discovery) (*envdiff.Utilities, error) {
	path := cfg.Body.Utilities
	if path == "" {
		found, ok := disc.FindUtilities()
		if !ok {
			return nil, nil
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if cfg.Body.Utilities == "" {
			slog.Warn("ignoring unreadable utilities script", "path", path, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("read utilities script: %w", err)
	}
	return &envdiff.Utilities{Path: path, Source: string(data)}, nil
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			m[k] = v
		}
	}
	return m
}
