// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"slices"
	"strings"
)

func (e *Environment) set(name, value string) EnvOp {
	op := EnvOp{Kind: OpSet, Variable: name, Value: value, Prior: e.snapshot(name)}
	e.restore(name, strPtr(value))
	return op
}

func (e *Environment) unset(name string) EnvOp {
	op := EnvOp{Kind: OpUnset, Variable: name, Prior: e.snapshot(name)}
	e.restore(name, nil)
	return op
}

func (e *Environment) insert(kind OpKind, name, value string) EnvOp {
	op := EnvOp{Kind: kind, Variable: name, Value: value, Prior: e.snapshot(name)}
	key := refKey{name, value}
	if r := e.refs[key]; r != nil {
		r.Count++
		op.Shared = true
		op.End = r.End
		op.KeepEmpty = r.KeepEmpty
		return op
	}

	ref := &ListRef{Count: 1, End: endFor(kind), KeepEmpty: op.Prior != nil && *op.Prior == ""}
	run := strings.Split(value, e.sep)
	parts := e.list(name)
	if kind == OpPrepend {
		parts = append(run, parts...)
	} else {
		parts = append(parts, run...)
	}
	e.writeList(name, parts, false)
	e.refs[key] = ref
	op.End = ref.End
	op.KeepEmpty = ref.KeepEmpty
	return op
}

func (e *Environment) pop(name, value string) EnvOp {
	op := EnvOp{Kind: OpPop, Variable: name, Value: value, Prior: e.snapshot(name), Index: -1}
	key := refKey{name, value}
	r := e.refs[key]
	if r != nil && r.Count > 1 {
		r.Count--
		op.Counted = true
		op.End = r.End
		op.KeepEmpty = r.KeepEmpty
		return op
	}

	last := r != nil && r.End == EndBack
	run := strings.Split(value, e.sep)
	parts := e.list(name)
	idx := indexRun(parts, run, last)
	if r != nil {
		delete(e.refs, key)
		op.Counted = true
		op.End = r.End
		op.KeepEmpty = r.KeepEmpty
	}
	if idx < 0 {
		return op
	}
	e.writeList(name, slices.Delete(parts, idx, idx+len(run)), op.KeepEmpty)
	op.Removed = true
	op.Index = idx
	return op
}

// Revert applies the inverse of op. It returns a *ReplayMismatchError when
// the environment is not in the state op left it in; the variable is then
// left as found, apart from reference bookkeeping.
func (e *Environment) Revert(op EnvOp) error {
	switch op.Kind {
	case OpSet:
		if cur, ok := e.vars[op.Variable]; !ok || cur != op.Value {
			return &ReplayMismatchError{Op: op, Reason: "value changed since it was set"}
		}
		e.restore(op.Variable, op.Prior)
	case OpUnset:
		if _, ok := e.vars[op.Variable]; ok {
			return &ReplayMismatchError{Op: op, Reason: "variable set again since it was unset"}
		}
		e.restore(op.Variable, op.Prior)
	case OpPrepend, OpAppend:
		return e.revertInsert(op)
	case OpPop:
		return e.revertPop(op)
	default:
		return &ReplayMismatchError{Op: op, Reason: "unknown operation"}
	}
	return nil
}

// RevertAll reverts ops in reverse order and returns every mismatch.
func (e *Environment) RevertAll(ops []EnvOp) []error {
	var warnings []error
	for i := len(ops) - 1; i >= 0; i-- {
		if err := e.Revert(ops[i]); err != nil {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

func (e *Environment) revertInsert(op EnvOp) error {
	key := refKey{op.Variable, op.Value}
	r := e.refs[key]
	if r == nil {
		return &ReplayMismatchError{Op: op, Reason: "entry is not referenced"}
	}
	if r.Count > 1 {
		r.Count--
		return nil
	}
	delete(e.refs, key)
	run := strings.Split(op.Value, e.sep)
	parts := e.list(op.Variable)
	idx := indexRun(parts, run, r.End == EndBack)
	if idx < 0 {
		return &ReplayMismatchError{Op: op, Reason: "entry no longer present"}
	}
	e.writeList(op.Variable, slices.Delete(parts, idx, idx+len(run)), r.KeepEmpty)
	return nil
}

func (e *Environment) revertPop(op EnvOp) error {
	key := refKey{op.Variable, op.Value}
	if op.Removed {
		run := strings.Split(op.Value, e.sep)
		parts := e.list(op.Variable)
		idx := min(op.Index, len(parts))
		e.writeList(op.Variable, slices.Insert(parts, idx, run...), false)
		if op.Counted {
			e.refs[key] = &ListRef{Count: 1, End: op.End, KeepEmpty: op.KeepEmpty}
		}
		return nil
	}
	if !op.Counted {
		return nil
	}
	if r := e.refs[key]; r != nil {
		r.Count++
		return nil
	}
	e.refs[key] = &ListRef{Count: 1, End: op.End, KeepEmpty: op.KeepEmpty}
	return nil
}

// Replay applies op again on top of the current environment and returns it
// as recorded now, with a fresh prior snapshot and reference state.
func (e *Environment) Replay(op EnvOp) EnvOp {
	switch op.Kind {
	case OpSet:
		return e.set(op.Variable, op.Value)
	case OpUnset:
		return e.unset(op.Variable)
	case OpPrepend, OpAppend:
		return e.insert(op.Kind, op.Variable, op.Value)
	case OpPop:
		return e.pop(op.Variable, op.Value)
	default:
		return op
	}
}

// ReplayAll replays ops in order and returns the newly recorded op-log.
func (e *Environment) ReplayAll(ops []EnvOp) []EnvOp {
	out := make([]EnvOp, len(ops))
	for i, op := range ops {
		out[i] = e.Replay(op)
	}
	return out
}
