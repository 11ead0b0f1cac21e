// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/testutil"
	"github.com/setpkg/setpkg/pkg/pkgfile"
)

const simpleDef = `'''
[main]
default-version = 1
[versions]
1
'''
env_set FOO 1
`

func TestList(t *testing.T) {
	t.Parallel()

	first := testutil.WriteTree(t, t.TempDir(), map[string]string{
		"nuke.pkg":      simpleDef,
		"maya.pkg":      simpleDef,
		"notes.txt":     "ignored",
		"deep/skip.pkg": simpleDef,
	})
	second := testutil.WriteTree(t, t.TempDir(), map[string]string{
		"nuke.pkg":    simpleDef + "# shadowed\n",
		"houdini.pkg": simpleDef,
	})
	missing := filepath.Join(t.TempDir(), "missing")

	d := New([]string{first, missing, second})
	entries, err := d.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	slices.Sort(names)
	if want := []string{"houdini", "maya", "nuke"}; !slices.Equal(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for _, e := range entries {
		if e.Name == "nuke" && e.Path != filepath.Join(first, "nuke.pkg") {
			t.Errorf("nuke resolved to %s, want the first search path", e.Path)
		}
		if e.Fingerprint == "" {
			t.Errorf("%s has no fingerprint", e.Name)
		}
	}

	codes := map[string]int{}
	for _, diag := range d.Diagnostics() {
		codes[diag.Code]++
	}
	if codes[CodeSearchPathMissing] != 1 {
		t.Errorf("missing-path diagnostics = %d, want 1", codes[CodeSearchPathMissing])
	}
	if codes[CodeShadowed] != 1 {
		t.Errorf("shadowed diagnostics = %d, want 1", codes[CodeShadowed])
	}
}

func TestListRecursivePattern(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, t.TempDir(), map[string]string{
		"apps/nuke.pkg":      simpleDef,
		"libs/ocio/ocio.pkg": simpleDef,
	})

	entries, err := New([]string{root}, WithPattern("**/*.pkg")).List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestListNoSearchPath(t *testing.T) {
	t.Parallel()

	if _, err := New(nil).List(); !errors.Is(err, ErrNoSearchPath) {
		t.Errorf("List() error = %v, want ErrNoSearchPath", err)
	}
}

func TestListReservedName(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"con.pkg": {Data: []byte(simpleDef)}}
	d := New([]string{"/virtual"}, WithFS(func(string) fs.FS { return fsys }))
	entries, err := d.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	diags := d.Diagnostics()
	if len(diags) != 1 || diags[0].Code != CodeReservedName {
		t.Errorf("diagnostics = %+v, want one %s", diags, CodeReservedName)
	}
}

func TestReadThroughRepository(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, t.TempDir(), map[string]string{"nuke.pkg": simpleDef})
	repo := repository.New(New([]string{root}), pkgfile.Options{})

	def, err := repo.Load("nuke")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if def.DefaultVersion != "1" {
		t.Errorf("DefaultVersion = %q, want 1", def.DefaultVersion)
	}

	d := New([]string{root})
	if _, err := d.Read(filepath.Join(t.TempDir(), "elsewhere.pkg")); err == nil {
		t.Error("Read() outside the search path should fail")
	}
}

func TestFindUtilities(t *testing.T) {
	t.Parallel()

	empty := t.TempDir()
	withUtil := testutil.WriteTree(t, t.TempDir(), map[string]string{
		UtilitiesFile: "greet() { log_info hi; }\n",
	})

	path, ok := New([]string{empty, withUtil}).FindUtilities()
	if !ok || path != filepath.Join(withUtil, UtilitiesFile) {
		t.Errorf("FindUtilities() = %q, %v", path, ok)
	}
	if _, ok := New([]string{empty}).FindUtilities(); ok {
		t.Error("FindUtilities() found a file in an empty directory")
	}
}

func TestSearchPaths(t *testing.T) {
	t.Parallel()

	env := "/a" + string(filepath.ListSeparator) + "/b/" + string(filepath.ListSeparator)
	got := SearchPaths(env, []string{"/b", " ", "/c"})
	want := []string{filepath.Clean("/a"), filepath.Clean("/b"), filepath.Clean("/c")}
	if !slices.Equal(got, want) {
		t.Errorf("SearchPaths() = %v, want %v", got, want)
	}
}
