// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/setpkg/setpkg/internal/repository"
	"github.com/setpkg/setpkg/pkg/pkgfile"
	"github.com/setpkg/setpkg/pkg/platform"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// PathEnv is the environment variable holding the search path.
	PathEnv = "SETPKG_PATH"
	// DefaultPattern matches definitions directly inside a search directory.
	DefaultPattern = "*" + pkgfile.Extension
	// UtilitiesFile is the user utility script looked up on the search path.
	UtilitiesFile = "setpkgutil.sh"
)

// ErrNoSearchPath is returned when no search directory is configured.
var ErrNoSearchPath = errors.New("no package search path configured")

type (
	// Discovery scans search-path directories for definition files.
	Discovery struct {
		paths   []string
		pattern string
		fsys    func(dir string) fs.FS

		mu          sync.Mutex
		diagnostics []Diagnostic
	}

	// Option configures a Discovery.
	Option func(*Discovery)
)

// WithPattern sets the doublestar pattern, relative to each search
// directory, that selects definition files. "**/*.pkg" searches recursively.
func WithPattern(pattern string) Option {
	return func(d *Discovery) {
		if pattern != "" {
			d.pattern = pattern
		}
	}
}

// WithFS replaces the filesystem used to scan each directory.
func WithFS(open func(dir string) fs.FS) Option {
	return func(d *Discovery) { d.fsys = open }
}

// New creates a Discovery over paths, searched in order.
func New(paths []string, opts ...Option) *Discovery {
	d := &Discovery{
		paths:   paths,
		pattern: DefaultPattern,
		fsys:    os.DirFS,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SearchPaths combines the SETPKG_PATH value with configured paths,
// dropping empty entries and duplicates.
func SearchPaths(envValue string, configured []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range append(filepath.SplitList(envValue), configured...) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// Paths returns the search directories.
func (d *Discovery) Paths() []string { return d.paths }

// Diagnostics returns the findings of the last List call.
func (d *Discovery) Diagnostics() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.diagnostics...)
}

// List implements repository.Source.
func (d *Discovery) List() ([]repository.Entry, error) {
	if len(d.paths) == 0 {
		return nil, ErrNoSearchPath
	}
	var (
		entries []repository.Entry
		diags   []Diagnostic
		first   = map[string]string{}
	)
	for _, dir := range d.paths {
		if _, err := fs.Stat(d.fsys(dir), "."); err != nil {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeSearchPathMissing,
				Message:  fmt.Sprintf("search path %s does not exist", dir),
				Path:     dir,
				Cause:    err,
			})
			continue
		}
		matches, err := doublestar.Glob(d.fsys(dir), d.pattern, doublestar.WithFilesOnly())
		if err != nil {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Code:     CodeSearchPathMissing,
				Message:  fmt.Sprintf("cannot scan %s", dir),
				Path:     dir,
				Cause:    err,
			})
			continue
		}
		for _, rel := range matches {
			path := filepath.Join(dir, filepath.FromSlash(rel))
			name := strings.TrimSuffix(filepath.Base(rel), pkgfile.Extension)
			if prev, ok := first[name]; ok {
				diags = append(diags, Diagnostic{
					Severity: SeverityWarning,
					Code:     CodeShadowed,
					Message:  fmt.Sprintf("%s is shadowed by %s", path, prev),
					Path:     path,
				})
				continue
			}
			data, err := fs.ReadFile(d.fsys(dir), rel)
			if err != nil {
				diags = append(diags, Diagnostic{
					Severity: SeverityError,
					Code:     CodeUnreadable,
					Message:  fmt.Sprintf("cannot read %s", path),
					Path:     path,
					Cause:    err,
				})
				continue
			}
			if platform.IsWindowsReservedName(name) {
				diags = append(diags, Diagnostic{
					Severity: SeverityWarning,
					Code:     CodeReservedName,
					Message:  fmt.Sprintf("package name %q cannot be used on Windows", name),
					Path:     path,
				})
			}
			first[name] = path
			entries = append(entries, repository.Entry{
				Name:        name,
				Path:        path,
				Fingerprint: repository.Fingerprint(data),
			})
		}
	}

	d.mu.Lock()
	d.diagnostics = diags
	d.mu.Unlock()
	return entries, nil
}

// Read implements repository.Source.
func (d *Discovery) Read(path string) ([]byte, error) {
	for _, dir := range d.paths {
		rel, err := filepath.Rel(dir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return fs.ReadFile(d.fsys(dir), filepath.ToSlash(rel))
	}
	return nil, fmt.Errorf("%s: not on the search path: %w", path, fs.ErrNotExist)
}

// FindUtilities returns the path of the first UtilitiesFile on the search path.
func (d *Discovery) FindUtilities() (string, bool) {
	for _, dir := range d.paths {
		if _, err := fs.Stat(d.fsys(dir), UtilitiesFile); err == nil {
			return filepath.Join(dir, UtilitiesFile), true
		}
	}
	return "", false
}
