// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/setpkg/setpkg/pkg/pkgfile"
)

const nukeHeader = `'''
[main]
version-regex = (\d+)\.(\d+)v(\d+)
default-version = 6.0

[versions]
6.0v6
6.0v1
6.1v2
10.0v1
5.1v4

[aliases]
6.0 = 6.0v6
6 = 6.0
'''
`

func mustParse(t *testing.T, name, text string) *pkgfile.Definition {
	t.Helper()
	d, err := pkgfile.Parse(name, name+".pkg", "", []byte(text), pkgfile.Options{})
	if err != nil {
		t.Fatalf("Parse(%s) error = %v", name, err)
	}
	return d
}

func TestResolve_AliasAndDefault(t *testing.T) {
	t.Parallel()

	def := mustParse(t, "nuke", nukeHeader)

	tests := []struct {
		name      string
		requested string
		override  string
		want      string
		source    Source
	}{
		{name: "default via alias", want: "6.0v6", source: SourceDefault},
		{name: "explicit alias", requested: "6.0", want: "6.0v6", source: SourceExplicit},
		{name: "explicit literal", requested: "6.0v1", want: "6.0v1", source: SourceExplicit},
		{name: "chained alias", requested: "6", want: "6.0v6", source: SourceExplicit},
		{name: "override beats default", override: "6.1v2", want: "6.1v2", source: SourceOverride},
		{name: "explicit beats override", requested: "5.1v4", override: "6.1v2", want: "5.1v4", source: SourceExplicit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(def, tt.requested, tt.override, 0)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Version != tt.want {
				t.Errorf("Version = %q, want %q", got.Version, tt.want)
			}
			if got.Source != tt.source {
				t.Errorf("Source = %q, want %q", got.Source, tt.source)
			}
		})
	}
}

func TestResolve_VersionParts(t *testing.T) {
	t.Parallel()

	def := mustParse(t, "nuke", nukeHeader)
	got, err := Resolve(def, "6.0", "", 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !slices.Equal(got.Parts, []string{"6", "0", "6"}) {
		t.Errorf("Parts = %v", got.Parts)
	}
}

func TestResolve_UnknownVersion(t *testing.T) {
	t.Parallel()

	def := mustParse(t, "nuke", nukeHeader)
	_, err := Resolve(def, "7.0", "", 0)

	var uv *UnknownVersionError
	if !errors.As(err, &uv) {
		t.Fatalf("Resolve() error = %v, want UnknownVersionError", err)
	}
	if !errors.Is(err, ErrUnknownVersion) {
		t.Error("errors.Is(err, ErrUnknownVersion) = false")
	}
	want := []string{"5.1v4", "6.0v1", "6.0v6", "6.1v2", "10.0v1"}
	if !slices.Equal(uv.Valid, want) {
		t.Errorf("Valid = %v, want %v", uv.Valid, want)
	}
	if !strings.Contains(err.Error(), "5.1v4, 6.0v1") {
		t.Errorf("message does not enumerate sorted versions: %v", err)
	}
}

func TestResolve_BadOverrideNamesVariable(t *testing.T) {
	t.Parallel()

	def := mustParse(t, "nuke", nukeHeader)
	_, err := Resolve(def, "", "9.9", 0)
	if err == nil || !strings.Contains(err.Error(), "SETPKG_NUKE_DEFAULT_VERSION") {
		t.Errorf("Resolve() error = %v, want mention of the override variable", err)
	}
}

func TestResolve_SingleVersionFallback(t *testing.T) {
	t.Parallel()

	def := mustParse(t, "solo", "'''\n[versions]\n3.2\n'''\n")
	got, err := Resolve(def, "", "", 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Version != "3.2" || got.Source != SourceOnly {
		t.Errorf("Resolve() = %+v", got)
	}

	multi := mustParse(t, "multi", "'''\n[versions]\n1\n2\n'''\n")
	if _, err := Resolve(multi, "", "", 0); !errors.Is(err, pkgfile.ErrDefinition) {
		t.Errorf("Resolve() without default = %v, want ErrDefinition", err)
	}
}

func TestSorted_Lexical(t *testing.T) {
	t.Parallel()

	def := mustParse(t, "lex", "'''\n[versions]\nb\nc\na\n'''\n")
	if got := Sorted(def); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Errorf("Sorted() = %v", got)
	}
}

func TestOverrideVariable(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"nuke":     "SETPKG_NUKE_DEFAULT_VERSION",
		"my.tool":  "SETPKG_MY_TOOL_DEFAULT_VERSION",
		"python_3": "SETPKG_PYTHON_3_DEFAULT_VERSION",
	}
	for in, want := range tests {
		if got := OverrideVariable(in); got != want {
			t.Errorf("OverrideVariable(%q) = %q, want %q", in, got, want)
		}
	}
}
