// SPDX-License-Identifier: MPL-2.0

package version

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/setpkg/setpkg/pkg/pkgfile"
)

// Sorted returns the definition's versions in ascending order. With a
// version-regex, versions compare by their parsed components (numerically
// where both sides are integers); versions the regex does not match sort
// lexically after the rest. Without a regex the order is lexical.
func Sorted(def *pkgfile.Definition) []string {
	out := slices.Clone(def.Versions)
	if def.VersionRegex == nil {
		slices.Sort(out)
		return out
	}
	slices.SortStableFunc(out, func(a, b string) int {
		pa, pb := def.VersionParts(a), def.VersionParts(b)
		switch {
		case pa == nil && pb == nil:
			return cmp.Compare(a, b)
		case pa == nil:
			return 1
		case pb == nil:
			return -1
		}
		if c := compareParts(pa, pb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return out
}

func compareParts(a, b []string) int {
	for i := range min(len(a), len(b)) {
		ai, aerr := strconv.Atoi(a[i])
		bi, berr := strconv.Atoi(b[i])
		var c int
		if aerr == nil && berr == nil {
			c = cmp.Compare(ai, bi)
		} else {
			c = cmp.Compare(a[i], b[i])
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}
