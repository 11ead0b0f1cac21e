// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/setpkg/setpkg/internal/envdiff"
)

// Kind names a supported shell dialect.
type Kind string

const (
	Bash Kind = "bash"
	Zsh  Kind = "zsh"
	Sh   Kind = "sh"
	Tcsh Kind = "tcsh"
	Csh  Kind = "csh"
	Fish Kind = "fish"
	Cmd  Kind = "cmd"
)

// ErrUnknownShell is returned for shell names with no renderer.
var ErrUnknownShell = errors.New("unsupported shell")

var kinds = []Kind{Bash, Zsh, Sh, Tcsh, Csh, Fish, Cmd}

// Kinds returns every supported shell.
func Kinds() []Kind { return slices.Clone(kinds) }

// Parse maps a shell name or path (as in $SHELL) to its Kind. Login-shell
// names such as "-csh" are accepted.
func Parse(name string) (Kind, error) {
	base := strings.TrimPrefix(filepath.Base(name), "-")
	base = strings.TrimSuffix(strings.ToLower(base), ".exe")
	switch base {
	case "ksh", "dash", "ash", "mksh":
		return Sh, nil
	case "cmd", "dos":
		return Cmd, nil
	}
	if k := Kind(base); slices.Contains(kinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownShell, name)
}

// Render writes the commands that apply changes in shell k.
func Render(w io.Writer, k Kind, changes []envdiff.Change) error {
	d, err := dialectFor(k)
	if err != nil {
		return err
	}
	for _, c := range changes {
		var line string
		switch c.Kind {
		case envdiff.ChangeSet:
			line, err = d.set(c.Variable, c.Value)
		case envdiff.ChangeUnset:
			line = d.unset(c.Variable)
		default:
			err = fmt.Errorf("unknown change %q for %s", c.Kind, c.Variable)
		}
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
