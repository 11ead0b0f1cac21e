// SPDX-License-Identifier: MPL-2.0

package version

import (
	"log/slog"

	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchRows evaluates every row against version in declaration order and
// returns the union of the specs of all matching rows. A package named by
// more than one row keeps its first occurrence.
func MatchRows(rows []pkgfile.Row, version string) []pkgfile.Spec {
	var (
		out  []pkgfile.Spec
		seen = map[string]bool{}
	)
	for _, row := range rows {
		ok, err := doublestar.Match(row.Glob, version)
		if err != nil {
			slog.Warn("invalid version glob", "glob", row.Glob, "error", err)
			continue
		}
		if !ok {
			continue
		}
		for _, spec := range row.Specs {
			if seen[spec.Name] {
				continue
			}
			seen[spec.Name] = true
			out = append(out, spec)
		}
	}
	return out
}
