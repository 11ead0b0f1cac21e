// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrInvalidVariable is returned for variable names that are not shell identifiers.
	ErrInvalidVariable = errors.New("invalid variable name")
	// ErrEmptyValue is returned when an empty value is added to a list.
	ErrEmptyValue = errors.New("empty list value")

	variableRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Recorder is the env capability handed to one package body. Every mutation
// is applied to the shared Environment and appended to the recorder's op-log.
type Recorder struct {
	env  *Environment
	root string
	ops  []EnvOp
}

// NewRecorder returns a Recorder writing to env. Relative paths in values are
// resolved against root, the directory of the package definition.
func NewRecorder(env *Environment, root string) *Recorder {
	return &Recorder{env: env, root: root}
}

// Ops returns the recorded op-log.
func (r *Recorder) Ops() []EnvOp { return r.ops }

// Environ returns the current variables as KEY=VALUE pairs.
func (r *Recorder) Environ() []string { return r.env.Environ() }

// Get returns a variable's current value.
func (r *Recorder) Get(name string) (string, bool) { return r.env.Get(name) }

// Set assigns value to name.
func (r *Recorder) Set(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	r.ops = append(r.ops, r.env.set(name, r.resolve(value)))
	return nil
}

// Unset removes name.
func (r *Recorder) Unset(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	r.ops = append(r.ops, r.env.unset(name))
	return nil
}

// Prepend inserts value at the front of the list in name.
func (r *Recorder) Prepend(name, value string) error {
	return r.insert(OpPrepend, name, value)
}

// Append inserts value at the back of the list in name.
func (r *Recorder) Append(name, value string) error {
	return r.insert(OpAppend, name, value)
}

// Pop drops one reference to value from the list in name.
func (r *Recorder) Pop(name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%w: %s", ErrEmptyValue, name)
	}
	r.ops = append(r.ops, r.env.pop(name, r.resolve(value)))
	return nil
}

func (r *Recorder) insert(kind OpKind, name, value string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%w: %s", ErrEmptyValue, name)
	}
	r.ops = append(r.ops, r.env.insert(kind, name, r.resolve(value)))
	return nil
}

// resolve makes relative paths absolute against the definition directory.
// Only values that look like relative paths are touched: "./x", or anything
// containing a slash that is neither absolute nor a URL.
func (r *Recorder) resolve(value string) string {
	if r.root == "" {
		return value
	}
	if strings.HasPrefix(value, "./") ||
		(strings.Contains(value, "/") && !filepath.IsAbs(value) && !strings.HasPrefix(value, "/") &&
			!strings.Contains(value, "://") && !strings.Contains(value, r.env.sep)) {
		return filepath.Join(r.root, value)
	}
	return value
}

func checkName(name string) error {
	if !variableRE.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidVariable, name)
	}
	return nil
}
