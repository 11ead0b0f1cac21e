// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/setpkg/setpkg/pkg/pkgfile"
)

const (
	// BackendFile stores each session as a JSON file.
	BackendFile SessionBackend = "file"
	// BackendSQLite stores every session in one SQLite database.
	BackendSQLite SessionBackend = "sqlite"
)

var (
	// ErrInvalidSessionBackend is returned when a SessionBackend value is not recognized.
	ErrInvalidSessionBackend = errors.New("invalid session backend")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// SessionBackend selects where session records are stored.
	SessionBackend string

	// InvalidSessionBackendError is returned when a SessionBackend value is not recognized.
	InvalidSessionBackendError struct {
		Value SessionBackend
	}

	// SessionConfig controls session persistence.
	SessionConfig struct {
		// Dir holds session records and lock files. Empty means os.TempDir().
		Dir string `json:"dir" mapstructure:"dir"`
		// Backend selects the record store.
		Backend SessionBackend `json:"backend" mapstructure:"backend"`
		// Lock serializes commands that target the same session.
		Lock bool `json:"lock" mapstructure:"lock"`
	}

	// BodyConfig controls what package bodies may do.
	BodyConfig struct {
		// AllowExec permits external programs and file writes in bodies.
		AllowExec bool `json:"allow_exec" mapstructure:"allow_exec"`
		// Utilities is a helper script loaded before every body. Empty means
		// the first setpkgutil.sh on the search path.
		Utilities string `json:"utilities" mapstructure:"utilities"`
	}

	// Config is the complete setpkg configuration.
	Config struct {
		SearchPaths   []string          `json:"search_paths" mapstructure:"search_paths"`
		Session       SessionConfig     `json:"session" mapstructure:"session"`
		LogLevel      string            `json:"log_level" mapstructure:"log_level"`
		Shell         string            `json:"shell" mapstructure:"shell"`
		Body          BodyConfig        `json:"body" mapstructure:"body"`
		ListSeparator string            `json:"list_separator" mapstructure:"list_separator"`
		MaxAliasHops  int               `json:"max_alias_hops" mapstructure:"max_alias_hops"`
		Aliases       map[string]string `json:"aliases" mapstructure:"aliases"`
	}

	// InvalidConfigError collects field errors found after decoding.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		SearchPaths: []string{},
		Session: SessionConfig{
			Backend: BackendFile,
			Lock:    true,
		},
		LogLevel:      "warn",
		ListSeparator: string(os.PathListSeparator),
		MaxAliasHops:  pkgfile.DefaultMaxAliasHops,
		Aliases:       map[string]string{},
	}
}

// String returns the string representation of the SessionBackend.
func (b SessionBackend) String() string { return string(b) }

// IsValid reports whether b names a known backend.
func (b SessionBackend) IsValid() (bool, []error) {
	switch b {
	case BackendFile, BackendSQLite:
		return true, nil
	default:
		return false, []error{&InvalidSessionBackendError{Value: b}}
	}
}

// Error implements the error interface.
func (e *InvalidSessionBackendError) Error() string {
	return fmt.Sprintf("invalid session backend %q (valid: file, sqlite)", e.Value)
}

// Unwrap returns ErrInvalidSessionBackend for errors.Is() compatibility.
func (e *InvalidSessionBackendError) Unwrap() error { return ErrInvalidSessionBackend }

// IsValid checks the constraints the schema cannot see, such as values
// arriving through SETPKG_* environment overrides.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Session.Backend.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.MaxAliasHops < 1 {
		errs = append(errs, fmt.Errorf("max_alias_hops must be at least 1, got %d", c.MaxAliasHops))
	}
	if c.ListSeparator == "" {
		errs = append(errs, errors.New("list_separator must not be empty"))
	}
	for name, spec := range c.Aliases {
		if _, err := pkgfile.ParseSpec(spec); err != nil {
			errs = append(errs, fmt.Errorf("aliases.%s: %w", name, err))
		}
	}
	for i, p := range c.SearchPaths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("search_paths[%d] is empty", i))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
