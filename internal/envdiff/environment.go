// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// ErrReplayMismatch is the sentinel wrapped by ReplayMismatchError.
var ErrReplayMismatch = errors.New("environment replay mismatch")

type (
	// Environment is the variable set of one session plus the reference
	// counts of list entries inserted by active packages.
	Environment struct {
		vars     map[string]string
		baseline map[string]string
		touched  map[string]struct{}
		refs     map[refKey]*ListRef
		sep      string
	}

	// ReplayMismatchError reports an op whose inverse did not find the state
	// it expected. Reverting continues; the error is a warning.
	ReplayMismatchError struct {
		Op     EnvOp
		Reason string
	}

	// ChangeKind is the kind of a net variable change.
	ChangeKind string

	// Change is one entry of the net delta between the caller's environment
	// and the session's current one.
	Change struct {
		Kind     ChangeKind `json:"op" toml:"op"`
		Variable string     `json:"var" toml:"var"`
		Value    string     `json:"value,omitempty" toml:"value,omitempty"`
	}
)

const (
	ChangeSet   ChangeKind = "set"
	ChangeUnset ChangeKind = "unset"
)

func (e *ReplayMismatchError) Error() string {
	return fmt.Sprintf("cannot undo %s %s: %s", e.Op.Kind, e.Op.Variable, e.Reason)
}

func (e *ReplayMismatchError) Unwrap() error { return ErrReplayMismatch }

// NewEnvironment builds an Environment from KEY=VALUE pairs. sep is the list
// separator; empty means the OS path-list separator.
func NewEnvironment(environ []string, sep string) *Environment {
	if sep == "" {
		sep = string(os.PathListSeparator)
	}
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return &Environment{
		vars:     vars,
		baseline: maps.Clone(vars),
		touched:  map[string]struct{}{},
		refs:     map[refKey]*ListRef{},
		sep:      sep,
	}
}

// Get returns a variable's value and whether it is set.
func (e *Environment) Get(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// Separator returns the list separator.
func (e *Environment) Separator() string { return e.sep }

// Environ returns the current variables as sorted KEY=VALUE pairs.
func (e *Environment) Environ() []string {
	out := make([]string, 0, len(e.vars))
	for _, k := range slices.Sorted(maps.Keys(e.vars)) {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// Map returns a copy of the current variables.
func (e *Environment) Map() map[string]string {
	return maps.Clone(e.vars)
}

// Refs returns a copy of the reference count of each tracked list entry,
// keyed by variable and then value.
func (e *Environment) Refs() map[string]map[string]ListRef {
	out := map[string]map[string]ListRef{}
	for k, r := range e.refs {
		if out[k.variable] == nil {
			out[k.variable] = map[string]ListRef{}
		}
		out[k.variable][k.value] = *r
	}
	return out
}

// Clone returns a deep copy sharing nothing mutable with e.
func (e *Environment) Clone() *Environment {
	refs := make(map[refKey]*ListRef, len(e.refs))
	for k, r := range e.refs {
		cp := *r
		refs[k] = &cp
	}
	return &Environment{
		vars:     maps.Clone(e.vars),
		baseline: e.baseline,
		touched:  maps.Clone(e.touched),
		refs:     refs,
		sep:      e.sep,
	}
}

// Restore replaces e's state with a copy of snap's.
func (e *Environment) Restore(snap *Environment) {
	*e = *snap.Clone()
}

// Delta returns the net changes from the environment e was created with,
// sorted by variable name.
func (e *Environment) Delta() []Change {
	var out []Change
	for _, name := range slices.Sorted(maps.Keys(e.touched)) {
		cur, curOK := e.vars[name]
		base, baseOK := e.baseline[name]
		switch {
		case curOK && (!baseOK || cur != base):
			out = append(out, Change{Kind: ChangeSet, Variable: name, Value: cur})
		case !curOK && baseOK:
			out = append(out, Change{Kind: ChangeUnset, Variable: name})
		}
	}
	return out
}

// Touch marks name as changed by something other than a recorded op, so
// Delta reports it.
func (e *Environment) Touch(name string) {
	e.touched[name] = struct{}{}
}

// Assign sets or unsets a variable without recording an op.
func (e *Environment) Assign(name string, value *string) {
	e.restore(name, value)
}

// Track re-registers the list reference held by op. Sessions call it for
// every op of every active package, in activation order, to rebuild the
// reference counts of a reloaded Environment.
func (e *Environment) Track(op EnvOp) {
	key := refKey{op.Variable, op.Value}
	switch op.Kind {
	case OpPrepend, OpAppend:
		if r := e.refs[key]; r != nil {
			r.Count++
			return
		}
		e.refs[key] = &ListRef{Count: 1, End: op.End, KeepEmpty: op.KeepEmpty}
	case OpPop:
		if !op.Counted {
			return
		}
		if r := e.refs[key]; r != nil {
			r.Count--
			if r.Count <= 0 {
				delete(e.refs, key)
			}
		}
	}
}

func (e *Environment) snapshot(name string) *string {
	if v, ok := e.vars[name]; ok {
		return strPtr(v)
	}
	return nil
}

func (e *Environment) restore(name string, value *string) {
	e.touched[name] = struct{}{}
	if value == nil {
		delete(e.vars, name)
		return
	}
	e.vars[name] = *value
}

func (e *Environment) list(name string) []string {
	v, ok := e.vars[name]
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, e.sep)
}

func (e *Environment) writeList(name string, parts []string, keepEmpty bool) {
	e.touched[name] = struct{}{}
	if len(parts) == 0 {
		if keepEmpty {
			e.vars[name] = ""
		} else {
			delete(e.vars, name)
		}
		return
	}
	e.vars[name] = strings.Join(parts, e.sep)
}

// indexRun finds run as a contiguous sub-slice of parts, scanning from the
// back when last is set. It returns -1 when absent.
func indexRun(parts, run []string, last bool) int {
	n := len(parts) - len(run)
	if len(run) == 0 || n < 0 {
		return -1
	}
	if last {
		for i := n; i >= 0; i-- {
			if slices.Equal(parts[i:i+len(run)], run) {
				return i
			}
		}
		return -1
	}
	for i := 0; i <= n; i++ {
		if slices.Equal(parts[i:i+len(run)], run) {
			return i
		}
	}
	return -1
}
