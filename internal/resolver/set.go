// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"slices"

	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/internal/version"
	"github.com/setpkg/setpkg/pkg/pkgfile"
)

type addOpts struct {
	// parent is the package whose requires or subs named this one.
	parent   string
	force    bool
	explicit bool
	depth    int
}

// Set activates specs in order. With force, packages that are already active
// are unloaded and run again even when nothing changed.
func (r *Resolver) Set(ctx context.Context, st *session.State, env *envdiff.Environment, specs []pkgfile.Spec, force bool) (*Result, error) {
	t := r.begin(ctx, st, env)
	for _, spec := range specs {
		if _, err := t.add(spec, addOpts{force: force, explicit: true}); err != nil {
			return nil, t.rollback(err)
		}
	}
	return t.commit(), nil
}

// add ensures spec is active. It reports whether the package body ran.
func (t *txn) add(spec pkgfile.Spec, o addOpts) (bool, error) {
	if err := t.ctx.Err(); err != nil {
		return false, err
	}
	def, err := t.r.repo.Load(spec.Name)
	if err != nil {
		var unknown *repository.UnknownPackageError
		if errors.As(err, &unknown) && o.parent != "" {
			unknown.RequiredBy = o.parent
		}
		return false, err
	}

	cur := t.st.Find(def.Name)
	requested := spec.Version
	if requested == "" && cur != nil {
		requested = cur.Version
	}
	res, err := version.Resolve(def, requested, t.r.override(def.Name), t.r.opts.MaxAliasHops)
	if err != nil {
		return false, err
	}

	if i := slices.Index(t.chain, def.Name); i >= 0 {
		// A package in the chain that is already active is in its subs
		// phase; asking for the version it has is satisfied.
		if cur != nil && cur.Version == res.Version {
			return false, nil
		}
		return false, &CyclicDependencyError{Cycle: append(slices.Clone(t.chain[i:]), def.Name)}
	}
	t.chain = append(t.chain, def.Name)
	defer func() { t.chain = t.chain[:len(t.chain)-1] }()

	ev := Event{Action: ActionAdd, Package: def.Name, Version: res.Version, Depth: o.depth}
	var (
		unloaded []unloadedPackage
		explicit = o.explicit
	)
	if cur != nil {
		explicit = explicit || cur.Explicit
		switch {
		case o.force:
			ev.Action = ActionReload
		case t.r.repo.Stale(def.Name, cur.Fingerprint):
			ev.Action = ActionRefresh
		case cur.Version == res.Version:
			if missing := t.missingRequirement(def, cur.Version); missing == "" {
				cur.Explicit = explicit
				t.emit(Event{Action: ActionKeep, Package: def.Name, Version: cur.Version, Depth: o.depth})
				return false, nil
			}
			ev.Action = ActionReload
		default:
			ev.Action = ActionSwitch
			ev.From = cur.Version
		}
		t.emit(ev)
		unloaded = t.unload(def.Name, o.depth, true)
	} else {
		t.emit(ev)
	}

	var requires []string
	for _, req := range version.MatchRows(def.Requires, res.Version) {
		if _, err := t.add(req, addOpts{parent: def.Name, depth: o.depth + 1}); err != nil {
			return false, err
		}
		requires = append(requires, req.Name)
	}

	p, err := t.execute(def, res)
	if err != nil {
		return false, err
	}
	p.Explicit = explicit
	p.Requires = requires
	t.st.Push(p)
	t.result.Added = append(t.result.Added, p.Spec())

	for _, sub := range version.MatchRows(def.Subs, res.Version) {
		loaded, err := t.add(sub, addOpts{parent: def.Name, depth: o.depth + 1})
		if err != nil {
			return false, err
		}
		if t.st.Find(def.Name) != p {
			t.warn("%s was unloaded while loading its sub-package %s", p.Spec(), sub.Name)
			return true, nil
		}
		if loaded {
			p.Subs = append(p.Subs, sub.Name)
		}
	}

	if len(unloaded) > 0 {
		if err := t.reloadDependents(def, res.Version, unloaded, o.depth); err != nil {
			return false, err
		}
	}
	return true, nil
}

// execute runs def's body at res and returns the new active instance.
func (t *txn) execute(def *pkgfile.Definition, res version.Resolved) (*session.Package, error) {
	rec := envdiff.NewRecorder(t.env, definitionDir(def))
	body := envdiff.Body{
		Source:   def.Body,
		Filename: def.Path,
		Line:     def.BodyLine,
		Dir:      definitionDir(def),
	}
	bindings := envdiff.Bindings{
		Env:          rec,
		Name:         def.Name,
		Version:      res.Version,
		VersionParts: res.Parts,
		Logger:       t.r.opts.Logger,
		Platform:     t.r.opts.Platform,
		Utilities:    t.r.opts.Utilities,
	}
	if err := t.r.exec.Execute(t.ctx, body, bindings); err != nil {
		var bodyErr *envdiff.BodyExecutionError
		if !errors.As(err, &bodyErr) {
			err = &envdiff.BodyExecutionError{Package: def.Name, Version: res.Version, Path: def.Path, Err: err}
		}
		return nil, err
	}
	return &session.Package{
		Name:         def.Name,
		Version:      res.Version,
		VersionParts: res.Parts,
		Path:         def.Path,
		Fingerprint:  def.Fingerprint,
		Ops:          rec.Ops(),
	}, nil
}

// missingRequirement returns the first package def requires at v that is not
// active, or "".
func (t *txn) missingRequirement(def *pkgfile.Definition, v string) string {
	for _, req := range version.MatchRows(def.Requires, v) {
		if t.st.Find(req.Name) == nil {
			return req.Name
		}
	}
	return ""
}

// reloadDependents activates again the packages that were unloaded because
// they depended on def. A dependent that pins a different version of def, or
// that needs another dependent which could not be reloaded, stays unloaded
// with a warning.
func (t *txn) reloadDependents(def *pkgfile.Definition, v string, unloaded []unloadedPackage, depth int) error {
	skipped := map[string]bool{}
	for _, u := range unloaded {
		if !u.dependent || u.pkg.Name == def.Name || t.st.Find(u.pkg.Name) != nil {
			continue
		}
		if i := slices.IndexFunc(u.pkg.Requires, func(n string) bool { return skipped[n] }); i >= 0 {
			t.warn("%s requires %s, which was not reloaded", u.pkg.Spec(), u.pkg.Requires[i])
			skipped[u.pkg.Name] = true
			continue
		}
		if pin := t.pinnedVersion(u.pkg, def); pin != "" && pin != v {
			t.warn("%s requires %s-%s", u.pkg.Spec(), def.Name, pin)
			skipped[u.pkg.Name] = true
			continue
		}
		spec := pkgfile.Spec{Name: u.pkg.Name, Version: u.pkg.Version}
		if _, err := t.add(spec, addOpts{explicit: u.pkg.Explicit, depth: depth + 1}); err != nil {
			return err
		}
		for _, parent := range u.parents {
			if p := t.st.Find(parent); p != nil && !slices.Contains(p.Subs, u.pkg.Name) {
				p.Subs = append(p.Subs, u.pkg.Name)
			}
		}
	}
	return nil
}

// pinnedVersion returns the version of def that dependent's requirements
// name explicitly, expanded to a literal version, or "".
func (t *txn) pinnedVersion(dependent *session.Package, def *pkgfile.Definition) string {
	depDef, err := t.r.repo.Load(dependent.Name)
	if err != nil {
		return ""
	}
	for _, req := range version.MatchRows(depDef.Requires, dependent.Version) {
		if req.Name != def.Name || req.Version == "" {
			continue
		}
		if v, ok, err := def.Expand(req.Version, t.r.opts.MaxAliasHops); err == nil && ok {
			return v
		}
		return req.Version
	}
	return ""
}
