// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"log/slog"
	"slices"

	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/pkg/pkgfile"
)

type (
	// unloadReason records why a package is part of an unload.
	unloadReason int

	unloadedPackage struct {
		pkg       *session.Package
		dependent bool
		// parents are the packages that had loaded pkg as a sub-package.
		parents []string
	}
)

const (
	reasonTarget unloadReason = iota
	reasonDependent
	reasonSub
)

// Unset deactivates specs in order, together with their dependents and any
// sub-packages left without a referrer. A spec naming a version only matches
// when that version is the active one.
func (r *Resolver) Unset(ctx context.Context, st *session.State, env *envdiff.Environment, specs []pkgfile.Spec) (*Result, error) {
	t := r.begin(ctx, st, env)
	for _, spec := range specs {
		if err := t.remove(spec); err != nil {
			return nil, t.rollback(err)
		}
	}
	return t.commit(), nil
}

func (t *txn) remove(spec pkgfile.Spec) error {
	if err := t.ctx.Err(); err != nil {
		return err
	}
	cur := t.st.Find(spec.Name)
	if cur == nil {
		return &NotActiveError{Name: spec.Name, Requested: spec.Version}
	}
	if spec.Version != "" && t.canonical(spec) != cur.Version {
		return &NotActiveError{Name: spec.Name, Requested: spec.Version, Active: cur.Version}
	}
	t.unload(spec.Name, 0, false)
	return nil
}

// canonical expands an alias in spec when the definition is loadable.
func (t *txn) canonical(spec pkgfile.Spec) string {
	def, err := t.r.repo.Load(spec.Name)
	if err != nil {
		return spec.Version
	}
	if v, ok, err := def.Expand(spec.Version, t.r.opts.MaxAliasHops); err == nil && ok {
		return v
	}
	return spec.Version
}

// unload deactivates name, every package that depends on it and every
// sub-package orphaned by that, in reverse activation order. With quiet the
// target itself emits no event. It returns the unloaded packages in
// activation order.
func (t *txn) unload(name string, depth int, quiet bool) []unloadedPackage {
	set := t.closure(name)
	var out []unloadedPackage
	for _, p := range t.st.Packages {
		reason, ok := set[p.Name]
		if !ok {
			continue
		}
		var parents []string
		for _, parent := range t.st.Parents(p.Name) {
			parents = append(parents, parent.Name)
		}
		out = append(out, unloadedPackage{pkg: p, dependent: reason == reasonDependent, parents: parents})
	}

	stack := t.unwindStack(set)
	for i := len(stack) - 1; i >= 0; i-- {
		p := stack[i]
		for _, err := range t.env.RevertAll(p.Ops) {
			t.warn("%s: %v", p.Spec(), err)
		}
		if _, ok := set[p.Name]; !ok {
			continue
		}
		if !quiet || p.Name != name {
			d := depth
			if p.Name != name {
				d++
			}
			t.emit(Event{Action: ActionRemove, Package: p.Name, Version: p.Version, Depth: d})
		}
		t.st.Remove(p.Name)
		t.result.Removed = append(t.result.Removed, p.Spec())
	}
	for _, p := range stack {
		if _, ok := set[p.Name]; ok {
			continue
		}
		p.Ops = t.env.ReplayAll(p.Ops)
		slog.Debug("replayed package", "package", p.Spec(), "session", t.st.ID)
	}
	return out
}

// unwindStack returns, in activation order, the packages in set plus every
// package activated after one of them whose op-log touches a variable an
// earlier package on the stack touched. Those later packages must be
// reverted first and replayed afterwards so each revert meets the state its
// op left behind.
func (t *txn) unwindStack(set map[string]unloadReason) []*session.Package {
	first := slices.IndexFunc(t.st.Packages, func(p *session.Package) bool {
		_, ok := set[p.Name]
		return ok
	})
	if first < 0 {
		return nil
	}
	var stack []*session.Package
	touched := map[string]bool{}
	for _, p := range t.st.Packages[first:] {
		_, ok := set[p.Name]
		if !ok && !slices.ContainsFunc(p.Ops, func(op envdiff.EnvOp) bool { return touched[op.Variable] }) {
			continue
		}
		stack = append(stack, p)
		for _, op := range p.Ops {
			touched[op.Variable] = true
		}
	}
	return stack
}

// closure returns name plus every active package that must go with it:
// packages requiring something in the set, and non-explicit sub-packages
// whose parents and dependents are all in the set.
func (t *txn) closure(name string) map[string]unloadReason {
	set := map[string]unloadReason{name: reasonTarget}
	inSet := func(n string) bool {
		_, ok := set[n]
		return ok
	}
	for changed := true; changed; {
		changed = false
		for _, p := range t.st.Packages {
			if inSet(p.Name) {
				continue
			}
			if slices.ContainsFunc(p.Requires, inSet) {
				set[p.Name] = reasonDependent
				changed = true
				continue
			}
			if !p.Explicit && t.orphaned(p.Name, inSet) {
				set[p.Name] = reasonSub
				changed = true
			}
		}
	}
	return set
}

func (t *txn) orphaned(name string, inSet func(string) bool) bool {
	parents := t.st.Parents(name)
	if len(parents) == 0 {
		return false
	}
	for _, p := range parents {
		if !inSet(p.Name) {
			return false
		}
	}
	for _, p := range t.st.Dependents(name) {
		if !inSet(p.Name) {
			return false
		}
	}
	return true
}
