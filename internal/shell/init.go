// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"fmt"
	"io"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// InitOptions configures the wrapper snippet written by Init.
type InitOptions struct {
	// Program is the command the wrappers invoke, usually the absolute path
	// of the running executable.
	Program string
	// Aliases maps extra command names to package specs; each runs its
	// package through runpkg.
	Aliases map[string]string
}

var aliasNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ValidAlias reports whether name can be defined as a wrapper for spec in
// every dialect.
func ValidAlias(name, spec string) bool {
	return aliasNameRE.MatchString(name) && spec != "" && !strings.ContainsAny(spec, " \t'\"\\$`;&|<>%!")
}

// Init writes the setpkg, unsetpkg, runpkg and pkgs wrappers for shell k.
// setpkg and unsetpkg evaluate the delta printed by the program in the
// calling shell, which is how a package changes the interactive session.
func Init(w io.Writer, k Kind, opts InitOptions) error {
	d, err := dialectFor(k)
	if err != nil {
		return err
	}
	prog, err := quoteProgram(d, opts.Program)
	if err != nil {
		return err
	}
	invoke := func(sub string, withShell bool) string {
		parts := []string{prog, sub}
		if withShell {
			parts = append(parts, "--shell", string(k))
		}
		if s := d.session(); s != "" {
			parts = append(parts, "--session", s)
		}
		return strings.Join(append(parts, d.args()), " ")
	}

	lines := []string{
		d.function("setpkg", evalOutput(k, invoke("set", true))),
		d.function("unsetpkg", evalOutput(k, invoke("unset", true))),
		d.function("runpkg", invoke("run", false)),
		d.function("pkgs", invoke("ls", false)),
	}

	for _, name := range slices.Sorted(maps.Keys(opts.Aliases)) {
		spec := opts.Aliases[name]
		if !aliasNameRE.MatchString(name) {
			return fmt.Errorf("invalid alias name %q", name)
		}
		if !ValidAlias(name, spec) {
			return fmt.Errorf("alias %s: invalid package spec %q", name, spec)
		}
		lines = append(lines, d.function(name, "runpkg "+spec+" "+d.args()))
	}

	for _, line := range lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func evalOutput(k Kind, command string) string {
	switch k {
	case Tcsh, Csh:
		return "eval `" + command + "`"
	case Fish:
		return "eval (" + command + " | string collect)"
	case Cmd:
		return `for /f "usebackq delims=" %i in (` + "`" + command + "`" + `) do @%i`
	default:
		return `eval "$(` + command + `)"`
	}
}

func quoteProgram(d dialect, prog string) (string, error) {
	if prog == "" {
		prog = "setpkg"
	}
	if _, ok := d.(csh); ok {
		if strings.ContainsAny(prog, "'\"!\n") {
			return "", fmt.Errorf("cannot use %q as a csh command", prog)
		}
		if strings.ContainsAny(prog, " \t") {
			return `"` + prog + `"`, nil
		}
		return prog, nil
	}
	if _, ok := d.(cmd); ok && !strings.ContainsAny(prog, " \t") {
		return prog, nil
	}
	q, err := d.quote(prog)
	if err != nil {
		return "", err
	}
	return q, nil
}
