// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/setpkg/setpkg/internal/resolver"
	"github.com/setpkg/setpkg/internal/session"

	"github.com/pelletier/go-toml/v2"
)

var toolDef = definition(`
[main]
default-version = 2
[versions]
1
2
[system-aliases]
2 = 2
`, `
env_set TOOL_VERSION "$VERSION"
env_prepend PATH ./bin
`)

var appDef = definition(`
[versions]
1
[requires]
* = tool-1
`, `
env_set APP_HOME "/opt/app/$VERSION"
`)

func TestSetUnset_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef})
	pathBefore, _ := c.get("PATH")

	out, status := c.mustExec("set", "--shell", "cmd", "tool")
	for _, want := range []string{`set "TOOL_VERSION=2"`, `set "SETPKG_SESSION=4242"`} {
		if !strings.Contains(out, want) {
			t.Errorf("set output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(status, "adding:") || !strings.Contains(status, "tool-2") {
		t.Errorf("status = %q, want an adding line for tool-2", status)
	}
	c.apply(out)

	if got, _ := c.get("PATH"); got != filepath.Join(c.pkgs, "bin")+":"+pathBefore {
		t.Errorf("PATH = %q", got)
	}
	record := session.NewFileStore(c.sessions).Path(testSession)
	if _, err := os.Stat(record); err != nil {
		t.Fatalf("session record not written: %v", err)
	}

	if ls, _ := c.mustExec("ls"); ls != "tool-2\n" {
		t.Errorf("ls = %q, want tool-2", ls)
	}

	out, _ = c.mustExec("unset", "--shell", "cmd", "tool")
	if !strings.Contains(out, "set TOOL_VERSION=") {
		t.Errorf("unset output missing TOOL_VERSION removal:\n%s", out)
	}
	c.apply(out)

	if _, ok := c.get("TOOL_VERSION"); ok {
		t.Error("TOOL_VERSION still set after unset")
	}
	if got, _ := c.get("PATH"); got != pathBefore {
		t.Errorf("PATH after unset = %q, want %q", got, pathBefore)
	}
	if _, err := os.Stat(record); !os.IsNotExist(err) {
		t.Errorf("empty session record should be removed, stat err = %v", err)
	}
}

func TestSet_RequirementsAndQuiet(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef, "app.pkg": appDef})

	out, status := c.mustExec("set", "-q", "--shell", "cmd", "app")
	if strings.Contains(status, "adding:") {
		t.Errorf("quiet set wrote status %q", status)
	}
	if !strings.Contains(out, `set "TOOL_VERSION=1"`) || !strings.Contains(out, `set "APP_HOME=/opt/app/1"`) {
		t.Errorf("set output = %q", out)
	}
	c.apply(out)

	ls, _ := c.mustExec("ls")
	got := strings.Fields(ls)
	slices.Sort(got)
	if !slices.Equal(got, []string{"app-1", "tool-1"}) {
		t.Errorf("ls = %v", got)
	}

	filtered, _ := c.mustExec("ls", "ap*")
	if filtered != "app-1\n" {
		t.Errorf("ls ap* = %q", filtered)
	}
}

func TestSet_PosixOutputEvaluates(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef})
	out, _ := c.mustExec("set", "tool-1")

	if !strings.Contains(out, "export TOOL_VERSION=1;") {
		t.Errorf("bash output = %q", out)
	}
	if !strings.Contains(out, "export SETPKG_SESSION=4242;") {
		t.Errorf("bash output does not export the session id: %q", out)
	}
}

func TestCommandErrors(t *testing.T) {
	t.Parallel()

	files := map[string]string{
		"tool.pkg": toolDef,
		"a.pkg":    definition("[versions]\n1\n[requires]\n* = b", "env_set A 1"),
		"b.pkg":    definition("[versions]\n1\n[requires]\n* = a", "env_set B 1"),
		"boom.pkg": definition("[versions]\n1", "env_set"),
	}

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"unknown version", []string{"set", "tool-9"}, ExitUnknownVersion},
		{"unknown package", []string{"set", "nope"}, ExitUnknownPackage},
		{"not active", []string{"unset", "tool"}, ExitNotActive},
		{"cycle", []string{"set", "a"}, ExitCyclicDependency},
		{"body failure", []string{"set", "boom"}, ExitBodyExecution},
		{"bad shell", []string{"set", "--shell", "powershell", "tool"}, ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newCLI(t, files)
			out, _, err := c.exec(tt.args...)
			if err == nil {
				t.Fatalf("setpkg %v succeeded", tt.args)
			}
			if code, _ := classify(err); code != tt.code {
				t.Errorf("exit code = %d, want %d (err: %v)", code, tt.code, err)
			}
			if out != "" {
				t.Errorf("failed command wrote shell code %q", out)
			}
			if _, err := os.Stat(session.NewFileStore(c.sessions).Path(testSession)); !os.IsNotExist(err) {
				t.Error("failed command left a session record")
			}
		})
	}
}

func TestRun_ChildSession(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("executable bit lookup is POSIX-only")
	}

	c := newCLI(t, map[string]string{"tool.pkg": toolDef})
	exe := c.writeExecutable("bin/tool")
	c.runner.code = 3

	_, _, err := c.exec("run", "tool", "--flag", "x")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 3 {
		t.Fatalf("run error = %v, want exit code 3", err)
	}

	if len(c.runner.calls) != 1 {
		t.Fatalf("runner called %d times", len(c.runner.calls))
	}
	proc := c.runner.calls[0]
	if proc.Path != exe {
		t.Errorf("Path = %q, want %q", proc.Path, exe)
	}
	if !slices.Equal(proc.Args, []string{"--flag", "x"}) {
		t.Errorf("Args = %v", proc.Args)
	}
	if !slices.Contains(proc.Environ, "TOOL_VERSION=2") {
		t.Error("package environment not passed to the executable")
	}

	child := lookupEnviron(proc.Environ, session.ParentEnv)
	if !strings.HasPrefix(child, "run-") {
		t.Fatalf("%s = %q, want a child session", session.ParentEnv, child)
	}
	store := session.NewFileStore(c.sessions)
	if _, err := os.Stat(store.Path(child)); !os.IsNotExist(err) {
		t.Error("child session record not removed")
	}
	if _, err := os.Stat(store.Path(testSession)); !os.IsNotExist(err) {
		t.Error("run changed the calling session")
	}
}

func TestInfo_Formats(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef, "app.pkg": appDef})

	text, _ := c.mustExec("info", "tool")
	for _, want := range []string{"tool", "1 2", "tool2: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("text info missing %q:\n%s", want, text)
		}
	}

	raw, _ := c.mustExec("info", "app", "--format", "json")
	var info resolver.Info
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		t.Fatalf("json output: %v\n%s", err, raw)
	}
	if info.Name != "app" || !slices.Equal(info.Requires, []string{"tool-1"}) {
		t.Errorf("json info = %+v", info)
	}

	raw, _ = c.mustExec("info", "tool", "--format", "toml")
	var fromTOML resolver.Info
	if err := toml.Unmarshal([]byte(raw), &fromTOML); err != nil {
		t.Fatalf("toml output: %v\n%s", err, raw)
	}
	if !slices.Equal(fromTOML.Versions, []string{"1", "2"}) {
		t.Errorf("toml versions = %v", fromTOML.Versions)
	}

	if _, _, err := c.exec("info", "tool", "--format", "yaml"); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestList_Available(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef, "app.pkg": appDef})
	c.apply(func() string { out, _ := c.mustExec("set", "--shell", "cmd", "tool-1"); return out }())

	out, _ := c.mustExec("ls", "--available")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "app") || !strings.HasPrefix(lines[1], "tool") {
		t.Fatalf("ls --available = %q", out)
	}
	if !strings.Contains(lines[1], "*1") || !strings.Contains(lines[1], "2(default)") {
		t.Errorf("tool line = %q", lines[1])
	}

	raw, _ := c.mustExec("ls", "--available", "--format", "json")
	var report availableReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if len(report.Packages) != 2 || report.Packages[1].Active != "1" {
		t.Errorf("available = %+v", report.Packages)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	t.Run("clean", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t, map[string]string{"tool.pkg": toolDef, "app.pkg": appDef})
		out, _ := c.mustExec("check")
		if !strings.Contains(out, "2 package(s) checked, 0 error(s)") {
			t.Errorf("check output = %q", out)
		}
	})

	t.Run("problems", func(t *testing.T) {
		t.Parallel()

		c := newCLI(t, map[string]string{
			"a.pkg":      definition("[versions]\n1\n[requires]\n1 = b", "env_set A 1"),
			"b.pkg":      definition("[versions]\n1\n[requires]\n* = a", "env_set B 1"),
			"syntax.pkg": definition("[versions]\n1", "if then fi"),
		})
		out, _, err := c.exec("check")
		if code, _ := classify(err); code != ExitDefinition {
			t.Fatalf("check exit code = %d, want %d (err: %v)", code, ExitDefinition, err)
		}
		if !strings.Contains(out, "dependency cycle detected") {
			t.Errorf("cycle not reported:\n%s", out)
		}
		if !strings.Contains(out, "syntax.pkg: body:") {
			t.Errorf("body syntax error not reported:\n%s", out)
		}
	})
}

func TestInit_IncludesSystemAliases(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef})
	out, _ := c.mustExec("init", "--shell", "bash")

	for _, want := range []string{
		`setpkg() { eval "$(/usr/local/bin/setpkg set --shell bash --session $$ "$@")"; }`,
		`runpkg() { /usr/local/bin/setpkg run --session $$ "$@"; }`,
		`tool2() { runpkg tool-2 "$@"; }`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("init output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	t.Parallel()

	c := newCLI(t, nil)

	path, _ := c.mustExec("config", "path")
	want := filepath.Join(c.dir, "config", "config.cue")
	if strings.TrimSpace(path) != want {
		t.Errorf("config path = %q, want %q", path, want)
	}

	c.mustExec("config", "init")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("config init did not write %s: %v", want, err)
	}

	dump, _ := c.mustExec("config", "dump")
	if !strings.Contains(dump, c.sessions) {
		t.Errorf("dump does not reflect SETPKG_SESSION_DIR:\n%s", dump)
	}

	show, _ := c.mustExec("config", "show")
	if !strings.Contains(show, want) || !strings.Contains(show, c.pkgs) {
		t.Errorf("config show = %q", show)
	}
}

func TestSet_SQLiteBackend(t *testing.T) {
	t.Parallel()

	c := newCLI(t, map[string]string{"tool.pkg": toolDef})
	c.environ = append(c.environ, "SETPKG_SESSION_BACKEND=sqlite")

	out, _ := c.mustExec("set", "--shell", "cmd", "tool-1")
	c.apply(out)

	if _, err := os.Stat(filepath.Join(c.sessions, session.DatabaseFile)); err != nil {
		t.Fatalf("session database not created: %v", err)
	}
	if ls, _ := c.mustExec("ls"); ls != "tool-1\n" {
		t.Errorf("ls = %q, want tool-1", ls)
	}
}
