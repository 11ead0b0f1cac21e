// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"maps"
	"os"
	"slices"

	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/internal/version"
	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/bmatcuk/doublestar/v4"
)

type (
	// RunResult is the outcome of Run: the set result plus what the caller
	// needs to start the package's executable.
	RunResult struct {
		Result
		// Executable is the package's executable-path with variables
		// expanded against Environ, or the package name when none is set.
		Executable string
		// Environ is the full environment to run it with.
		Environ []string
	}

	// Info describes a package and its state in a session.
	Info struct {
		Name           string            `json:"name" toml:"name"`
		Path           string            `json:"path" toml:"path"`
		Executable     string            `json:"executable" toml:"executable"`
		DefaultVersion string            `json:"default_version,omitempty" toml:"default_version,omitempty"`
		Versions       []string          `json:"versions" toml:"versions"`
		Aliases        map[string]string `json:"aliases,omitempty" toml:"aliases,omitempty"`
		// Version is the version Requires and Subs were evaluated for.
		Version    string            `json:"version,omitempty" toml:"version,omitempty"`
		Requires   []string          `json:"requires,omitempty" toml:"requires,omitempty"`
		Subs       []string          `json:"subs,omitempty" toml:"subs,omitempty"`
		Dependents []string          `json:"dependents,omitempty" toml:"dependents,omitempty"`
		Active     string            `json:"active,omitempty" toml:"active,omitempty"`
		Stale      bool              `json:"stale,omitempty" toml:"stale,omitempty"`
		RunCmds    map[string]string `json:"run_commands,omitempty" toml:"run_commands,omitempty"`
		// Variables lists the variables the active instance changed.
		Variables []string `json:"variables,omitempty" toml:"variables,omitempty"`
	}

	// Available describes one package on the search path.
	Available struct {
		Name           string            `json:"name" toml:"name"`
		Versions       []string          `json:"versions,omitempty" toml:"versions,omitempty"`
		Aliases        map[string]string `json:"aliases,omitempty" toml:"aliases,omitempty"`
		DefaultVersion string            `json:"default_version,omitempty" toml:"default_version,omitempty"`
		Active         string            `json:"active,omitempty" toml:"active,omitempty"`
		// Error is set when the definition does not load.
		Error string `json:"error,omitempty" toml:"error,omitempty"`
	}
)

// Run activates spec like Set and returns the executable to start and the
// environment to start it with. Starting the process is up to the caller.
func (r *Resolver) Run(ctx context.Context, st *session.State, env *envdiff.Environment, spec pkgfile.Spec) (*RunResult, error) {
	res, err := r.Set(ctx, st, env, []pkgfile.Spec{spec}, false)
	if err != nil {
		return nil, err
	}
	def, err := r.repo.Load(spec.Name)
	if err != nil {
		return nil, err
	}
	exe := def.ExecutablePath
	if exe == "" {
		exe = def.Name
	}
	exe = os.Expand(exe, func(name string) string {
		v, _ := env.Get(name)
		return v
	})
	return &RunResult{Result: *res, Executable: exe, Environ: env.Environ()}, nil
}

// Info reports on spec. Requires and Subs are evaluated for spec's version
// when it names one, else for the active version, else for the version Set
// would pick.
func (r *Resolver) Info(st *session.State, spec pkgfile.Spec) (*Info, error) {
	def, err := r.repo.Load(spec.Name)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Name:           def.Name,
		Path:           def.Path,
		Executable:     def.ExecutablePath,
		DefaultVersion: def.DefaultVersion,
		Versions:       version.Sorted(def),
		Aliases:        maps.Clone(def.Aliases),
		RunCmds:        def.RunCommands(),
	}
	if info.Executable == "" {
		info.Executable = def.Name
	}

	requested := spec.Version
	if p := st.Find(def.Name); p != nil {
		info.Active = p.Version
		info.Stale = r.repo.Stale(def.Name, p.Fingerprint)
		for _, dep := range st.Dependents(def.Name) {
			info.Dependents = append(info.Dependents, dep.Spec())
		}
		vars := map[string]bool{}
		for _, op := range p.Ops {
			vars[op.Variable] = true
		}
		info.Variables = slices.Sorted(maps.Keys(vars))
		if requested == "" {
			requested = p.Version
		}
	}

	res, err := version.Resolve(def, requested, r.override(def.Name), r.opts.MaxAliasHops)
	if err != nil {
		if spec.Version != "" {
			return nil, err
		}
		return info, nil
	}
	info.Version = res.Version
	for _, req := range version.MatchRows(def.Requires, res.Version) {
		info.Requires = append(info.Requires, req.String())
	}
	for _, sub := range version.MatchRows(def.Subs, res.Version) {
		info.Subs = append(info.Subs, sub.String())
	}
	return info, nil
}

// List returns "name-version" of the active packages whose name matches the
// glob filter, in activation order. An empty filter matches everything.
func (r *Resolver) List(st *session.State, filter string) ([]string, error) {
	var out []string
	for _, p := range st.Packages {
		if filter != "" {
			ok, err := doublestar.Match(filter, p.Name)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out = append(out, p.Spec())
	}
	return out, nil
}

// Available lists every package on the search path whose name matches the
// glob filter, sorted by name. Packages that fail to load are included with
// their error.
func (r *Resolver) Available(st *session.State, filter string) ([]Available, error) {
	names, err := r.repo.Names()
	if err != nil {
		return nil, err
	}
	var out []Available
	for _, name := range names {
		if filter != "" {
			ok, err := doublestar.Match(filter, name)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		a := Available{Name: name}
		if p := st.Find(name); p != nil {
			a.Active = p.Version
		}
		def, err := r.repo.Load(name)
		if err != nil {
			a.Error = err.Error()
			out = append(out, a)
			continue
		}
		a.Versions = version.Sorted(def)
		a.Aliases = maps.Clone(def.Aliases)
		a.DefaultVersion = def.DefaultVersion
		out = append(out, a)
	}
	return out, nil
}
