// SPDX-License-Identifier: MPL-2.0

package session

import (
	"regexp"
	"slices"
	"time"

	"github.com/setpkg/setpkg/internal/envdiff"
)

var idRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type (
	// Package is one active package instance.
	Package struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		VersionParts []string `json:"version_parts,omitempty"`
		Path         string   `json:"path"`
		// Fingerprint is the definition's fingerprint when it was loaded.
		Fingerprint string `json:"fingerprint"`
		// Explicit marks packages the user asked for by name, as opposed to
		// ones pulled in as a requirement or sub-package.
		Explicit bool `json:"explicit,omitempty"`
		// Requires lists the packages this one required when it loaded.
		Requires []string `json:"requires,omitempty"`
		// Subs lists the sub-packages this one caused to load.
		Subs []string        `json:"subs,omitempty"`
		Ops  []envdiff.EnvOp `json:"ops,omitempty"`
	}

	// State is the record of one session. Packages is in activation order.
	State struct {
		ID        string     `json:"id"`
		Revision  string     `json:"revision,omitempty"`
		Parent    string     `json:"parent,omitempty"`
		UpdatedAt time.Time  `json:"updated_at"`
		Packages  []*Package `json:"packages"`

		// Warnings collects non-fatal problems met while loading the record.
		Warnings []string `json:"-"`
	}
)

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	return idRE.MatchString(id) && id != "." && id != ".."
}

// Spec returns the package as "name-version".
func (p *Package) Spec() string { return p.Name + "-" + p.Version }

// Clone returns a deep copy of p.
func (p *Package) Clone() *Package {
	cp := *p
	cp.VersionParts = slices.Clone(p.VersionParts)
	cp.Requires = slices.Clone(p.Requires)
	cp.Subs = slices.Clone(p.Subs)
	cp.Ops = slices.Clone(p.Ops)
	return &cp
}

// New returns an empty state for id.
func New(id string) *State {
	return &State{ID: id}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	cp := *s
	cp.Packages = make([]*Package, len(s.Packages))
	for i, p := range s.Packages {
		cp.Packages[i] = p.Clone()
	}
	cp.Warnings = slices.Clone(s.Warnings)
	return &cp
}

// Find returns the active package called name, or nil.
func (s *State) Find(name string) *Package {
	if i := s.Index(name); i >= 0 {
		return s.Packages[i]
	}
	return nil
}

// Index returns the stack position of name, or -1.
func (s *State) Index(name string) int {
	return slices.IndexFunc(s.Packages, func(p *Package) bool { return p.Name == name })
}

// Push appends p to the top of the stack.
func (s *State) Push(p *Package) {
	s.Packages = append(s.Packages, p)
}

// Remove drops name from the stack and from every other package's edges.
// It returns the removed package, or nil.
func (s *State) Remove(name string) *Package {
	i := s.Index(name)
	if i < 0 {
		return nil
	}
	p := s.Packages[i]
	s.Packages = slices.Delete(s.Packages, i, i+1)
	for _, other := range s.Packages {
		other.Requires = slices.DeleteFunc(other.Requires, func(n string) bool { return n == name })
		other.Subs = slices.DeleteFunc(other.Subs, func(n string) bool { return n == name })
	}
	return p
}

// Dependents returns the active packages that required name, in activation
// order.
func (s *State) Dependents(name string) []*Package {
	var out []*Package
	for _, p := range s.Packages {
		if slices.Contains(p.Requires, name) {
			out = append(out, p)
		}
	}
	return out
}

// Parents returns the active packages that loaded name as a sub-package.
func (s *State) Parents(name string) []*Package {
	var out []*Package
	for _, p := range s.Packages {
		if slices.Contains(p.Subs, name) {
			out = append(out, p)
		}
	}
	return out
}

// Specs returns "name-version" of every active package in activation order.
func (s *State) Specs() []string {
	out := make([]string, len(s.Packages))
	for i, p := range s.Packages {
		out[i] = p.Spec()
	}
	return out
}

// Rebuild re-registers the list references held by every active package's
// op-log on env, in activation order. env must hold the variables the
// session's shell currently has.
func (s *State) Rebuild(env *envdiff.Environment) {
	for _, p := range s.Packages {
		for _, op := range p.Ops {
			env.Track(op)
		}
	}
}
