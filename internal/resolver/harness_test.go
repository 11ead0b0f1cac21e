// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/setpkg/setpkg/internal/envdiff"
	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/internal/session"
	"github.com/setpkg/setpkg/pkg/pkgfile"
)

var baseEnviron = []string{"HOME=/home/artist", "PATH=/usr/bin:/bin"}

type harness struct {
	t        *testing.T
	src      *repository.MemorySource
	repo     *repository.Repository
	res      *Resolver
	st       *session.State
	env      *envdiff.Environment
	events   []Event
	override map[string]string
}

// definition assembles a package file from its ini header and shell body.
func definition(header, body string) string {
	return "'''\n" + strings.TrimSpace(header) + "\n'''\n" + strings.TrimSpace(body) + "\n"
}

func newHarness(t *testing.T, defs map[string]string) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		src:      repository.NewMemorySource(defs),
		st:       session.New("1"),
		env:      envdiff.NewEnvironment(baseEnviron, ":"),
		override: map[string]string{},
	}
	h.repo = repository.New(h.src, pkgfile.Options{})
	h.res = New(h.repo, &envdiff.ShellExecutor{}, Options{
		Override: func(name string) string { return h.override[name] },
		OnEvent:  func(ev Event) { h.events = append(h.events, ev) },
	})
	return h
}

func (h *harness) specs(tokens []string) []pkgfile.Spec {
	h.t.Helper()
	out := make([]pkgfile.Spec, 0, len(tokens))
	for _, tok := range tokens {
		spec, err := pkgfile.ParseSpec(tok)
		if err != nil {
			h.t.Fatalf("ParseSpec(%q) error = %v", tok, err)
		}
		out = append(out, spec)
	}
	return out
}

func (h *harness) set(tokens ...string) (*Result, error) {
	h.t.Helper()
	h.events = nil
	return h.res.Set(context.Background(), h.st, h.env, h.specs(tokens), false)
}

func (h *harness) mustSet(tokens ...string) *Result {
	h.t.Helper()
	res, err := h.set(tokens...)
	if err != nil {
		h.t.Fatalf("Set(%v) error = %v", tokens, err)
	}
	return res
}

func (h *harness) unset(tokens ...string) (*Result, error) {
	h.t.Helper()
	h.events = nil
	return h.res.Unset(context.Background(), h.st, h.env, h.specs(tokens))
}

func (h *harness) mustUnset(tokens ...string) *Result {
	h.t.Helper()
	res, err := h.unset(tokens...)
	if err != nil {
		h.t.Fatalf("Unset(%v) error = %v", tokens, err)
	}
	return res
}

// nextCommand starts a new command the way the CLI does: from the variables
// the shell now has, with references rebuilt from the session.
func (h *harness) nextCommand() {
	env := envdiff.NewEnvironment(h.env.Environ(), ":")
	h.st.Rebuild(env)
	h.env = env
}

func (h *harness) get(name string) string {
	v, _ := h.env.Get(name)
	return v
}

func (h *harness) actions() []string {
	out := make([]string, len(h.events))
	for i, ev := range h.events {
		out[i] = string(ev.Action) + " " + ev.Package
	}
	return out
}
