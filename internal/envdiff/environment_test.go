// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"errors"
	"slices"
	"testing"
)

func newEnv(pairs ...string) *Environment {
	return NewEnvironment(pairs, ":")
}

func mustGet(t *testing.T, e *Environment, name string) string {
	t.Helper()
	v, ok := e.Get(name)
	if !ok {
		t.Fatalf("%s is unset", name)
	}
	return v
}

func TestRecorder_RoundTrip(t *testing.T) {
	t.Parallel()

	start := []string{"PATH=/usr/bin:/bin", "HOME=/home/me", "EMPTY=", "GONE=soon"}
	env := newEnv(start...)
	rec := NewRecorder(env, "")

	steps := []func() error{
		func() error { return rec.Set("FOO", "bar") },
		func() error { return rec.Set("HOME", "/tmp") },
		func() error { return rec.Prepend("PATH", "/opt/a/bin") },
		func() error { return rec.Append("PATH", "/opt/b/bin") },
		func() error { return rec.Prepend("EMPTY", "x") },
		func() error { return rec.Append("NEW", "/n") },
		func() error { return rec.Unset("GONE") },
		func() error { return rec.Pop("PATH", "/bin") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if got := mustGet(t, env, "PATH"); got != "/opt/a/bin:/usr/bin:/opt/b/bin" {
		t.Errorf("PATH = %q", got)
	}
	if got := mustGet(t, env, "EMPTY"); got != "x" {
		t.Errorf("EMPTY = %q", got)
	}

	if warnings := env.RevertAll(rec.Ops()); len(warnings) != 0 {
		t.Fatalf("RevertAll() warnings = %v", warnings)
	}
	if got := env.Environ(); !slices.Equal(got, slices.Sorted(slices.Values(start))) {
		t.Errorf("Environ() after revert = %v, want %v", got, start)
	}
	if delta := env.Delta(); len(delta) != 0 {
		t.Errorf("Delta() after revert = %v, want empty", delta)
	}
}

func TestRecorder_Coexistence(t *testing.T) {
	t.Parallel()

	env := newEnv("X=/base")
	a := NewRecorder(env, "")
	b := NewRecorder(env, "")

	if err := a.Prepend("X", "/v"); err != nil {
		t.Fatal(err)
	}
	if err := b.Prepend("X", "/v"); err != nil {
		t.Fatal(err)
	}
	if got := mustGet(t, env, "X"); got != "/v:/base" {
		t.Fatalf("after both loads X = %q, want V once at the front", got)
	}
	if !b.Ops()[0].Shared {
		t.Error("second insert should be shared")
	}

	if w := env.RevertAll(a.Ops()); len(w) != 0 {
		t.Fatalf("unload A warnings = %v", w)
	}
	if got := mustGet(t, env, "X"); got != "/v:/base" {
		t.Errorf("after unloading A X = %q, want V kept", got)
	}

	if w := env.RevertAll(b.Ops()); len(w) != 0 {
		t.Fatalf("unload B warnings = %v", w)
	}
	if got := mustGet(t, env, "X"); got != "/base" {
		t.Errorf("after unloading both X = %q, want V gone", got)
	}
}

func TestRecorder_CoexistenceAppendSide(t *testing.T) {
	t.Parallel()

	env := newEnv("X=/v:/base")
	a := NewRecorder(env, "")
	b := NewRecorder(env, "")
	_ = a.Append("X", "/v")
	_ = b.Prepend("X", "/v")

	if got := mustGet(t, env, "X"); got != "/v:/base:/v" {
		t.Fatalf("X = %q", got)
	}
	env.RevertAll(b.Ops())
	env.RevertAll(a.Ops())
	if got := mustGet(t, env, "X"); got != "/v:/base" {
		t.Errorf("X = %q, want the pre-existing entry untouched", got)
	}
}

func TestRecorder_PopRefCounted(t *testing.T) {
	t.Parallel()

	env := newEnv()
	a := NewRecorder(env, "")
	b := NewRecorder(env, "")
	c := NewRecorder(env, "")
	_ = a.Prepend("P", "/v")
	_ = b.Prepend("P", "/v")

	_ = c.Pop("P", "/v")
	if got := mustGet(t, env, "P"); got != "/v" {
		t.Errorf("pop with two references: P = %q, want entry kept", got)
	}
	_ = c.Pop("P", "/v")
	if _, ok := env.Get("P"); ok {
		t.Error("pop of last reference should remove the entry and the empty variable")
	}

	env.RevertAll(c.Ops())
	if got := mustGet(t, env, "P"); got != "/v" {
		t.Errorf("after reverting pops P = %q", got)
	}
	if refs := env.Refs()["P"]["/v"]; refs.Count != 2 {
		t.Errorf("ref count = %d, want 2", refs.Count)
	}
}

func TestRecorder_PopUnmanaged(t *testing.T) {
	t.Parallel()

	env := newEnv("P=/a:/b:/c")
	rec := NewRecorder(env, "")
	_ = rec.Pop("P", "/b")
	_ = rec.Pop("P", "/missing")
	if got := mustGet(t, env, "P"); got != "/a:/c" {
		t.Errorf("P = %q", got)
	}
	env.RevertAll(rec.Ops())
	if got := mustGet(t, env, "P"); got != "/a:/b:/c" {
		t.Errorf("P after revert = %q", got)
	}
}

func TestRecorder_RelativePaths(t *testing.T) {
	t.Parallel()

	env := newEnv()
	rec := NewRecorder(env, "/pkgs/nuke")
	_ = rec.Set("A", "./bin")
	_ = rec.Set("B", "lib/python")
	_ = rec.Set("C", "/abs/path")
	_ = rec.Set("D", "plain")
	_ = rec.Set("E", "http://example.com/x")

	want := map[string]string{
		"A": "/pkgs/nuke/bin",
		"B": "/pkgs/nuke/lib/python",
		"C": "/abs/path",
		"D": "plain",
		"E": "http://example.com/x",
	}
	for k, v := range want {
		if got := mustGet(t, env, k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestRecorder_InvalidInput(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(newEnv(), "")
	if err := rec.Set("1BAD", "x"); !errors.Is(err, ErrInvalidVariable) {
		t.Errorf("Set(1BAD) = %v", err)
	}
	if err := rec.Prepend("PATH", ""); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("Prepend empty = %v", err)
	}
	if len(rec.Ops()) != 0 {
		t.Errorf("rejected calls recorded ops: %v", rec.Ops())
	}
}

func TestEnvironment_RevertMismatch(t *testing.T) {
	t.Parallel()

	env := newEnv()
	a := NewRecorder(env, "")
	b := NewRecorder(env, "")
	_ = a.Set("X", "a")
	_ = b.Set("X", "b")

	warnings := env.RevertAll(a.Ops())
	if len(warnings) != 1 || !errors.Is(warnings[0], ErrReplayMismatch) {
		t.Fatalf("warnings = %v, want one replay mismatch", warnings)
	}
	if got := mustGet(t, env, "X"); got != "b" {
		t.Errorf("X = %q, want current value kept", got)
	}
}

func TestEnvironment_ReplayAll(t *testing.T) {
	t.Parallel()

	env := newEnv("P=/base")
	a := NewRecorder(env, "")
	b := NewRecorder(env, "")
	_ = a.Set("X", "a")
	_ = a.Prepend("P", "/v")
	_ = b.Set("X", "b")
	_ = b.Pop("P", "/v")

	env.RevertAll(b.Ops())
	env.RevertAll(a.Ops())
	ops := env.ReplayAll(b.Ops())

	if got := mustGet(t, env, "X"); got != "b" {
		t.Errorf("X = %q after replay", got)
	}
	if ops[0].Prior != nil {
		t.Errorf("replayed set prior = %q, want unset", *ops[0].Prior)
	}
	if ops[1].Removed || ops[1].Counted {
		t.Errorf("replayed pop = %+v, want no removal", ops[1])
	}
	if warnings := env.RevertAll(ops); len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if got := env.Environ(); !slices.Equal(got, []string{"P=/base"}) {
		t.Errorf("environment = %v", got)
	}
}

func TestEnvironment_Track(t *testing.T) {
	t.Parallel()

	env := newEnv("P=/base")
	a := NewRecorder(env, "")
	b := NewRecorder(env, "")
	_ = a.Prepend("P", "/v")
	_ = b.Append("P", "/v")
	_ = b.Pop("P", "/base")

	// A fresh process rebuilds the counts from the persisted op-logs.
	reloaded := NewEnvironment(env.Environ(), ":")
	for _, op := range slices.Concat(a.Ops(), b.Ops()) {
		reloaded.Track(op)
	}
	if got := reloaded.Refs()["P"]["/v"]; got.Count != 2 || got.End != EndFront {
		t.Fatalf("rebuilt ref = %+v", got)
	}

	reloaded.RevertAll(b.Ops())
	reloaded.RevertAll(a.Ops())
	if got := mustGet(t, reloaded, "P"); got != "/base" {
		t.Errorf("P = %q", got)
	}
}

func TestEnvironment_DeltaAndClone(t *testing.T) {
	t.Parallel()

	env := newEnv("KEEP=1", "DROP=2", "SAME=3")
	snap := env.Clone()
	rec := NewRecorder(env, "")
	_ = rec.Set("NEW", "x")
	_ = rec.Unset("DROP")
	_ = rec.Set("SAME", "3")

	want := []Change{
		{Kind: ChangeUnset, Variable: "DROP"},
		{Kind: ChangeSet, Variable: "NEW", Value: "x"},
	}
	if got := env.Delta(); !slices.Equal(got, want) {
		t.Errorf("Delta() = %v, want %v", got, want)
	}

	env.Restore(snap)
	if got := env.Delta(); len(got) != 0 {
		t.Errorf("Delta() after Restore = %v", got)
	}
	if _, ok := env.Get("NEW"); ok {
		t.Error("Restore kept NEW")
	}
}

func TestIndexRun(t *testing.T) {
	t.Parallel()

	parts := []string{"a", "b", "c", "a", "b"}
	tests := []struct {
		run  []string
		last bool
		want int
	}{
		{[]string{"a", "b"}, false, 0},
		{[]string{"a", "b"}, true, 3},
		{[]string{"c"}, false, 2},
		{[]string{"b", "a"}, false, 1},
		{[]string{"x"}, false, -1},
		{nil, false, -1},
	}
	for _, tt := range tests {
		if got := indexRun(parts, tt.run, tt.last); got != tt.want {
			t.Errorf("indexRun(%v, last=%v) = %d, want %d", tt.run, tt.last, got, tt.want)
		}
	}
}
