// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/setpkg/setpkg/pkg/pkgfile"

	"github.com/cespare/xxhash/v2"
)

// ErrUnknownPackage is the sentinel wrapped by UnknownPackageError.
var ErrUnknownPackage = errors.New("unknown package")

type (
	// Entry is one definition offered by a Source.
	Entry struct {
		Name        string
		Path        string
		Fingerprint string
	}

	// Source lists and reads package definitions.
	Source interface {
		List() ([]Entry, error)
		Read(path string) ([]byte, error)
	}

	// UnknownPackageError reports a package name no Source entry provides.
	UnknownPackageError struct {
		Name string
		// RequiredBy names the package whose requires/subs named Name, if any.
		RequiredBy string
	}

	// Repository resolves package names to parsed definitions.
	Repository struct {
		src  Source
		opts pkgfile.Options

		mu      sync.Mutex
		listed  bool
		entries map[string]Entry
		order   []string
		cache   map[cacheKey]*pkgfile.Definition
	}

	cacheKey struct {
		path        string
		fingerprint string
	}
)

func (e *UnknownPackageError) Error() string {
	if e.RequiredBy != "" {
		return fmt.Sprintf("unknown package %q (required by %s)", e.Name, e.RequiredBy)
	}
	return fmt.Sprintf("unknown package %q", e.Name)
}

func (e *UnknownPackageError) Unwrap() error { return ErrUnknownPackage }

// Fingerprint computes the content fingerprint of a definition.
func Fingerprint(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// New creates a Repository over src.
func New(src Source, opts pkgfile.Options) *Repository {
	return &Repository{
		src:   src,
		opts:  opts,
		cache: map[cacheKey]*pkgfile.Definition{},
	}
}

// Refresh re-lists the source. Cached definitions whose fingerprint is still
// current stay cached.
func (r *Repository) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked()
}

func (r *Repository) refreshLocked() error {
	list, err := r.src.List()
	if err != nil {
		return fmt.Errorf("list package definitions: %w", err)
	}
	r.entries = make(map[string]Entry, len(list))
	r.order = r.order[:0]
	for _, e := range list {
		if _, dup := r.entries[e.Name]; dup {
			continue
		}
		r.entries[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	r.listed = true
	return nil
}

func (r *Repository) ensureListed() error {
	if r.listed {
		return nil
	}
	return r.refreshLocked()
}

// Names returns every known package name in sorted order.
func (r *Repository) Names() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureListed(); err != nil {
		return nil, err
	}
	return slices.Sorted(slices.Values(r.order)), nil
}

// Entry returns the source entry for name.
func (r *Repository) Entry(name string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureListed(); err != nil {
		return Entry{}, err
	}
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, &UnknownPackageError{Name: name}
	}
	return e, nil
}

// Load returns the parsed definition of name.
func (r *Repository) Load(name string) (*pkgfile.Definition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureListed(); err != nil {
		return nil, err
	}
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownPackageError{Name: name}
	}
	key := cacheKey{e.Path, e.Fingerprint}
	if def, ok := r.cache[key]; ok {
		return def, nil
	}

	data, err := r.src.Read(e.Path)
	if err != nil {
		return nil, &pkgfile.DefinitionError{Package: name, Path: e.Path, Reason: "cannot read definition", Err: err}
	}
	def, err := pkgfile.Parse(name, e.Path, e.Fingerprint, data, r.opts)
	if err != nil {
		return nil, err
	}
	for _, w := range def.Warnings {
		slog.Warn(w, "package", name, "path", e.Path)
	}
	for k := range r.cache {
		if k.path == e.Path {
			delete(r.cache, k)
		}
	}
	r.cache[key] = def
	return def, nil
}

// LoadAll parses every known definition. Definitions that fail to load are
// reported in errs and left out of defs.
func (r *Repository) LoadAll() (defs []*pkgfile.Definition, errs []error) {
	names, err := r.Names()
	if err != nil {
		return nil, []error{err}
	}
	for _, name := range names {
		def, err := r.Load(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, errs
}

// Stale reports whether the definition behind name changed since an instance
// was activated with fingerprint. Unknown packages are not stale.
func (r *Repository) Stale(name, fingerprint string) bool {
	e, err := r.Entry(name)
	if err != nil {
		return false
	}
	return e.Fingerprint != fingerprint
}
