// SPDX-License-Identifier: MPL-2.0

package pkgfile

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nameRE    = regexp.MustCompile(`^[A-Za-z0-9_.+]+$`)
	versionRE = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	tokenSep  = regexp.MustCompile(`[\s,]+`)
)

// ParseSpec splits a name or name-version token at its first '-'.
func ParseSpec(token string) (Spec, error) {
	token = strings.TrimSpace(token)
	name, version, hasVersion := strings.Cut(token, "-")
	if !nameRE.MatchString(name) {
		return Spec{}, fmt.Errorf("%w: %q", ErrInvalidSpec, token)
	}
	if hasVersion && !versionRE.MatchString(version) {
		return Spec{}, fmt.Errorf("%w: %q: bad version", ErrInvalidSpec, token)
	}
	return Spec{Name: name, Version: version}, nil
}

// ParseSpecList parses a space- or comma-separated list of tokens.
func ParseSpecList(list string) ([]Spec, error) {
	var specs []Spec
	for _, tok := range tokenSep.Split(strings.TrimSpace(list), -1) {
		if tok == "" {
			continue
		}
		s, err := ParseSpec(tok)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// ValidVersionToken reports whether v may be used as a version string.
func ValidVersionToken(v string) bool {
	return versionRE.MatchString(v)
}

// ValidName reports whether name may be used as a package name.
func ValidName(name string) bool {
	return nameRE.MatchString(name)
}
