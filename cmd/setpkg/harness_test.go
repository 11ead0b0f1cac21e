// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/setpkg/setpkg/internal/discovery"
	"github.com/setpkg/setpkg/internal/testutil"
	"github.com/setpkg/setpkg/pkg/platform"
)

const testSession = "4242"

type (
	// cli drives the command tree against a temp package tree, carrying the
	// caller's environment between commands like an interactive shell.
	cli struct {
		t        *testing.T
		dir      string
		pkgs     string
		sessions string
		environ  []string
		runner   *fakeRunner
	}

	// lockedBuffer is the stderr of a test App. logging.Setup installs the
	// slog default globally, so parallel tests may write to each other's.
	lockedBuffer struct {
		mu  sync.Mutex
		buf bytes.Buffer
	}

	fakeRunner struct {
		calls []Process
		code  int
	}
)

func (f *fakeRunner) Run(_ context.Context, proc Process) (int, error) {
	f.calls = append(f.calls, proc)
	return f.code, nil
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func definition(header, body string) string {
	return "'''\n" + strings.TrimSpace(header) + "\n'''\n" + strings.TrimSpace(body) + "\n"
}

func newCLI(t *testing.T, files map[string]string) *cli {
	t.Helper()
	dir := t.TempDir()
	c := &cli{
		t:        t,
		dir:      dir,
		pkgs:     testutil.WriteTree(t, filepath.Join(dir, "pkgs"), files),
		sessions: filepath.Join(dir, "sessions"),
		runner:   &fakeRunner{},
	}
	testutil.MustMkdirAll(t, c.sessions, 0o755)
	c.environ = []string{
		"HOME=" + dir,
		"PATH=/usr/bin:/bin",
		"SHELL=/bin/bash",
		discovery.PathEnv + "=" + c.pkgs,
		"SETPKG_SESSION_DIR=" + c.sessions,
	}
	return c
}

func (c *cli) exec(args ...string) (stdout, stderr string, err error) {
	c.t.Helper()
	var (
		out    bytes.Buffer
		errOut lockedBuffer
	)
	app := NewApp(Dependencies{
		Processes:  c.runner,
		Stdin:      strings.NewReader(""),
		Stdout:     &out,
		Stderr:     &errOut,
		Environ:    func() []string { return slices.Clone(c.environ) },
		Executable: func() (string, error) { return "/usr/local/bin/setpkg", nil },
		Platform:   func() platform.Info { return platform.Info{System: platform.Linux, Arch: "amd64"} },
		SessionID:  func() string { return testSession },
		ConfigDir:  filepath.Join(c.dir, "config"),
	})
	root := newRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SilenceErrors = true
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// mustExec runs args and fails the test on error.
func (c *cli) mustExec(args ...string) (stdout, stderr string) {
	c.t.Helper()
	stdout, stderr, err := c.exec(args...)
	if err != nil {
		c.t.Fatalf("setpkg %s: %v\nstderr:\n%s", strings.Join(args, " "), err, stderr)
	}
	return stdout, stderr
}

// apply evaluates cmd dialect output against the carried environment.
func (c *cli) apply(script string) {
	c.t.Helper()
	for line := range strings.SplitSeq(strings.TrimSpace(script), "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, `set "`):
			kv := strings.TrimSuffix(strings.TrimPrefix(line, `set "`), `"`)
			name, _, _ := strings.Cut(kv, "=")
			c.environ = append(withoutVar(c.environ, name), kv)
		case strings.HasPrefix(line, "set ") && strings.HasSuffix(line, "="):
			c.environ = withoutVar(c.environ, strings.TrimSuffix(strings.TrimPrefix(line, "set "), "="))
		default:
			c.t.Fatalf("unexpected line %q", line)
		}
	}
}

func (c *cli) get(name string) (string, bool) {
	for _, kv := range c.environ {
		if k, v, _ := strings.Cut(kv, "="); k == name {
			return v, true
		}
	}
	return "", false
}

func (c *cli) writeExecutable(rel string) string {
	c.t.Helper()
	path := filepath.Join(c.pkgs, filepath.FromSlash(rel))
	testutil.MustWriteFile(c.t, path, "#!/bin/sh\n")
	if err := os.Chmod(path, 0o755); err != nil {
		c.t.Fatalf("chmod: %v", err)
	}
	return path
}

func withoutVar(environ []string, name string) []string {
	return slices.DeleteFunc(environ, func(kv string) bool {
		k, _, _ := strings.Cut(kv, "=")
		return k == name
	})
}
