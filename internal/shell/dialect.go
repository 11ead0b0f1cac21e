// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

type dialect interface {
	set(name, value string) (string, error)
	unset(name string) string
	// function defines a command name that runs body with the caller's
	// arguments appended.
	function(name, body string) string
	// args is the dialect's spelling of "all arguments".
	args() string
	// session is the dialect's spelling of the shell's process id, or empty
	// when the shell cannot name itself.
	session() string
	quote(s string) (string, error)
}

func dialectFor(k Kind) (dialect, error) {
	switch k {
	case Bash, Zsh:
		return posix{lang: syntax.LangBash}, nil
	case Sh:
		return posix{lang: syntax.LangPOSIX}, nil
	case Tcsh, Csh:
		return csh{}, nil
	case Fish:
		return fish{}, nil
	case Cmd:
		return cmd{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownShell, k)
}

type posix struct{ lang syntax.LangVariant }

func (p posix) quote(s string) (string, error) { return syntax.Quote(s, p.lang) }

func (p posix) set(name, value string) (string, error) {
	q, err := p.quote(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Sprintf("export %s=%s;", name, q), nil
}

func (posix) unset(name string) string { return fmt.Sprintf("unset %s;", name) }

func (posix) function(name, body string) string {
	return fmt.Sprintf("%s() { %s; }", name, body)
}

func (posix) args() string    { return `"$@"` }
func (posix) session() string { return "$$" }

type csh struct{}

// quote single-quotes s. csh has no escape inside single quotes, so quotes
// and history characters are spliced in from outside them.
func (csh) quote(s string) (string, error) {
	if strings.ContainsAny(s, "\x00\n") {
		return "", fmt.Errorf("cannot quote %q for csh", s)
	}
	r := strings.NewReplacer(`'`, `'\''`, `!`, `'\!'`)
	return "'" + r.Replace(s) + "'", nil
}

func (c csh) set(name, value string) (string, error) {
	q, err := c.quote(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Sprintf("setenv %s %s;", name, q), nil
}

func (csh) unset(name string) string { return fmt.Sprintf("unsetenv %s;", name) }

// function defines an alias. body may hold history references such as \!*
// and must not contain single quotes.
func (csh) function(name, body string) string {
	return fmt.Sprintf("alias %s '%s';", name, body)
}

func (csh) args() string    { return `\!*` }
func (csh) session() string { return "$$" }

type fish struct{}

func (fish) quote(s string) (string, error) {
	if strings.ContainsRune(s, 0) {
		return "", fmt.Errorf("cannot quote %q for fish", s)
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'", nil
}

// set exports value. Variables named like *PATH are lists in fish, so the
// colon-joined value is split into elements.
func (f fish) set(name, value string) (string, error) {
	q, err := f.quote(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if strings.HasSuffix(name, "PATH") && value != "" {
		return fmt.Sprintf("set -gx %s (string split -- ':' %s);", name, q), nil
	}
	return fmt.Sprintf("set -gx %s %s;", name, q), nil
}

func (fish) unset(name string) string { return fmt.Sprintf("set -e %s;", name) }

func (fish) function(name, body string) string {
	return fmt.Sprintf("function %s; %s; end", name, body)
}

func (fish) args() string    { return "$argv" }
func (fish) session() string { return "$fish_pid" }

type cmd struct{}

func (cmd) quote(s string) (string, error) {
	if strings.ContainsAny(s, "\x00\r\n") {
		return "", fmt.Errorf("cannot quote %q for cmd", s)
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`, nil
}

func (cmd) set(name, value string) (string, error) {
	if strings.ContainsAny(value, "\x00\r\n") {
		return "", fmt.Errorf("%s: cannot set a multi-line value in cmd", name)
	}
	return fmt.Sprintf(`set "%s=%s"`, name, value), nil
}

func (cmd) unset(name string) string { return fmt.Sprintf("set %s=", name) }

func (cmd) function(name, body string) string {
	return fmt.Sprintf("doskey %s=%s", name, body)
}

func (cmd) args() string    { return "$*" }
func (cmd) session() string { return "" }
