// SPDX-License-Identifier: MPL-2.0

package pkgfile

import (
	"regexp"
	"slices"
)

// Extension is the filename suffix of package definition files.
const Extension = ".pkg"

// DefaultMaxAliasHops bounds alias chain resolution when no limit is configured.
const DefaultMaxAliasHops = 16

type (
	// Spec names a package and, optionally, a version or alias of it.
	// An empty Version means "the active version if loaded, else the default".
	Spec struct {
		Name    string `json:"name" toml:"name"`
		Version string `json:"version,omitempty" toml:"version,omitempty"`
	}

	// Row is one line of a [requires] or [subs] section: every spec applies
	// when the resolved version matches Glob.
	Row struct {
		Glob  string `json:"glob" toml:"glob"`
		Specs []Spec `json:"specs" toml:"specs"`
	}

	// SystemAlias is a [system-aliases] entry. Running <name><Suffix> runs the
	// package's executable at Version.
	SystemAlias struct {
		Suffix  string `json:"suffix" toml:"suffix"`
		Version string `json:"version" toml:"version"`
	}

	// Definition is a validated package definition.
	Definition struct {
		Name        string
		Path        string
		Fingerprint string

		ExecutablePath    string
		VersionRegex      *regexp.Regexp
		VersionPattern    string
		VersionsFromRegex bool
		DefaultVersion    string

		// Versions lists the literal versions in declaration order.
		Versions []string
		// Aliases maps alias names to their raw targets, which may be other aliases.
		Aliases     map[string]string
		AliasOrder  []string
		SystemAlias []SystemAlias

		Requires []Row
		Subs     []Row

		Body string
		// BodyLine is the 1-based line of the definition file where Body starts.
		BodyLine int

		// Warnings collects non-fatal problems found while parsing.
		Warnings []string
	}
)

// String renders the spec as a name-version token.
func (s Spec) String() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "-" + s.Version
}

// IsLiteral reports whether v is a concrete version of the package, either
// listed in [versions] or accepted by version-regex when versions-from-regex
// is enabled.
func (d *Definition) IsLiteral(v string) bool {
	if slices.Contains(d.Versions, v) {
		return true
	}
	return d.VersionsFromRegex && d.VersionRegex != nil && d.VersionRegex.MatchString(v)
}

// VersionParts returns the submatches of version-regex for v. The result is
// nil when no regex is set or v does not match it.
func (d *Definition) VersionParts(v string) []string {
	if d.VersionRegex == nil {
		return nil
	}
	m := d.VersionRegex.FindStringSubmatch(v)
	if m == nil {
		return nil
	}
	return m[1:]
}

// Expand follows alias links from v until a literal version is reached.
// It reports ok=false when v is neither a literal version nor an alias, and
// returns an *AliasCycleError when the chain loops or exceeds maxHops.
// A literal version shadows an alias of the same name.
func (d *Definition) Expand(v string, maxHops int) (version string, ok bool, err error) {
	if maxHops <= 0 {
		maxHops = DefaultMaxAliasHops
	}
	chain := []string{v}
	cur := v
	for hops := 0; ; hops++ {
		if d.IsLiteral(cur) {
			return cur, true, nil
		}
		target, isAlias := d.Aliases[cur]
		if !isAlias {
			return "", false, nil
		}
		if slices.Contains(chain, target) || hops >= maxHops {
			return "", false, &AliasCycleError{Package: d.Name, Chain: append(chain, target)}
		}
		chain = append(chain, target)
		cur = target
	}
}

// RunCommands returns the system aliases as command name to version pairs.
func (d *Definition) RunCommands() map[string]string {
	out := make(map[string]string, len(d.SystemAlias))
	for _, sa := range d.SystemAlias {
		out[d.Name+sa.Suffix] = sa.Version
	}
	return out
}
