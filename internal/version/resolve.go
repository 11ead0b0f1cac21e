// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/setpkg/setpkg/pkg/pkgfile"
)

// Source records which input produced the requested version.
type Source string

const (
	// SourceExplicit is a version named on the command line or in a spec.
	SourceExplicit Source = "explicit"
	// SourceOverride comes from the SETPKG_<NAME>_DEFAULT_VERSION variable.
	SourceOverride Source = "override"
	// SourceDefault is the definition's default-version.
	SourceDefault Source = "default"
	// SourceOnly is used when a definition lists a single version and no default.
	SourceOnly Source = "only"
)

// ErrUnknownVersion is the sentinel wrapped by UnknownVersionError.
var ErrUnknownVersion = errors.New("unknown version")

type (
	// Resolved is a concrete version of a package.
	Resolved struct {
		Version   string
		Parts     []string
		Requested string
		Source    Source
	}

	// UnknownVersionError reports a requested version that is neither a
	// version nor an alias of the package.
	UnknownVersionError struct {
		Package   string
		Requested string
		Source    Source
		Valid     []string
		Aliases   []string
	}
)

func (e *UnknownVersionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: invalid version %q", e.Package, e.Requested)
	if e.Source == SourceOverride {
		fmt.Fprintf(&sb, " (from %s)", OverrideVariable(e.Package))
	}
	fmt.Fprintf(&sb, ": valid choices are %s", strings.Join(e.Valid, ", "))
	if len(e.Aliases) > 0 {
		fmt.Fprintf(&sb, "; aliases: %s", strings.Join(e.Aliases, ", "))
	}
	return sb.String()
}

func (e *UnknownVersionError) Unwrap() error { return ErrUnknownVersion }

// Resolve picks the concrete version of def for a request. requested wins
// over override, which wins over the definition's default-version.
func Resolve(def *pkgfile.Definition, requested, override string, maxHops int) (Resolved, error) {
	req, src := requested, SourceExplicit
	if req == "" {
		req, src = override, SourceOverride
	}
	if req == "" {
		req, src = def.DefaultVersion, SourceDefault
	}
	if req == "" {
		if len(def.Versions) != 1 {
			return Resolved{}, &pkgfile.DefinitionError{
				Package: def.Name,
				Path:    def.Path,
				Reason:  "no version requested and no default-version set",
			}
		}
		req, src = def.Versions[0], SourceOnly
	}

	v, ok, err := def.Expand(req, maxHops)
	if err != nil {
		return Resolved{}, err
	}
	if !ok {
		return Resolved{}, &UnknownVersionError{
			Package:   def.Name,
			Requested: req,
			Source:    src,
			Valid:     Sorted(def),
			Aliases:   slices.Sorted(slices.Values(def.AliasOrder)),
		}
	}
	return Resolved{Version: v, Parts: def.VersionParts(v), Requested: req, Source: src}, nil
}

// OverrideVariable is the environment variable consulted for a per-package
// default version override: SETPKG_<NAME>_DEFAULT_VERSION, with the name
// uppercased and anything outside [A-Z0-9_] replaced by '_'.
func OverrideVariable(name string) string {
	var sb strings.Builder
	sb.WriteString("SETPKG_")
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	sb.WriteString("_DEFAULT_VERSION")
	return sb.String()
}
