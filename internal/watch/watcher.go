// SPDX-License-Identifier: MPL-2.0

// Package watch reports edits to package definitions on the search path.
//
// Events are filtered by doublestar patterns and coalesced: the callback
// fires once per quiet period with every path that changed in it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// ErrNoRoots is returned when none of the roots can be watched.
var ErrNoRoots = errors.New("no directories to watch")

// ignoredNames are editor and VCS droppings matched against base names.
var ignoredNames = []string{"*.swp", "*.swo", "*~", ".#*"}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Roots are the directories to watch, recursively.
		Roots []string
		// Patterns select the files that trigger the callback, matched
		// against the path relative to its root. Empty matches every file.
		Patterns []string
		// Debounce is the quiet period before the callback fires.
		Debounce time.Duration
		// OnChange receives the absolute paths that changed, sorted.
		OnChange func(ctx context.Context, changed []string) error
		// Stderr receives callback errors. Nil means os.Stderr.
		Stderr io.Writer
	}

	// Watcher monitors Roots until its context ends.
	Watcher struct {
		cfg   Config
		fsw   *fsnotify.Watcher
		roots []string
		once  sync.Once
	}
)

// New validates cfg and registers every directory under the roots. Roots
// that do not exist are skipped with a warning.
func New(cfg Config) (*Watcher, error) {
	for _, p := range cfg.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("watch: invalid pattern %q", p)
		}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	w := &Watcher{cfg: cfg, fsw: fsw}
	for _, root := range cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			slog.Warn("not watching missing directory", "path", root)
			continue
		}
		if err := w.addTree(abs); err != nil {
			fsw.Close() //nolint:errcheck // best-effort cleanup
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}
	if len(w.roots) == 0 {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, ErrNoRoots
	}
	return w, nil
}

// Roots returns the absolute directories being watched.
func (w *Watcher) Roots() []string { return slices.Clone(w.roots) }

// Run processes events until ctx is done. It returns nil on cancellation and
// an error when the watcher breaks. Run may be called once.
func (w *Watcher) Run(ctx context.Context) error {
	err := errors.New("watch: Run called more than once")
	w.once.Do(func() { err = w.run(ctx) })
	return err
}

func (w *Watcher) run(ctx context.Context) error {
	defer w.fsw.Close() //nolint:errcheck // nothing to report after shutdown

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						fmt.Fprintf(w.cfg.Stderr, "%v\n", err)
					}
					continue
				}
			}
			if !w.matches(evt.Name) {
				continue
			}
			pending[evt.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			if w.cfg.OnChange != nil {
				if err := w.cfg.OnChange(ctx, changed); err != nil {
					fmt.Fprintf(w.cfg.Stderr, "watch: %v\n", err)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Debug("not watching inaccessible path", "path", path, "error", err)
			return nil //nolint:nilerr // skip unreadable directories
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add %q: %w", path, err)
		}
		return nil
	})
}

// matches applies the patterns to path relative to the root holding it.
func (w *Watcher) matches(path string) bool {
	if isIgnored(path) {
		return false
	}
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		for _, p := range w.cfg.Patterns {
			if ok, _ := doublestar.Match(p, filepath.ToSlash(rel)); ok {
				return true
			}
		}
	}
	return false
}

func isIgnored(path string) bool {
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), ".git") {
		return true
	}
	base := filepath.Base(path)
	for _, p := range ignoredNames {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}
